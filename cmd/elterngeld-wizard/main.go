package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/config"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/database"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/extraction"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/form"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/mapping"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/schema"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/server"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/storage"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/workflow"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the configured level.
func setupLogging(cfg *config.Config) {
	log.SetOutput(os.Stderr)
	if cfg.IsDebug() {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
}

// loadCatalog returns the configured catalog snapshot or the built-in one.
func loadCatalog(cfg *config.Config) (*schema.Catalog, error) {
	if cfg.CatalogPath == "" {
		return schema.DefaultCatalog(), nil
	}
	return schema.LoadCatalog(cfg.CatalogPath)
}

// seedMappings bulk-inserts the optional seed file. Seeds are an initial
// import into the repository, never a parallel source of truth; rows
// already present are simply skipped.
func seedMappings(repo *mapping.Repository, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	result, err := repo.ImportJSON(data)
	if err != nil {
		return err
	}
	log.Printf("seed mappings: %d imported, %d already present", result.Imported, result.Conflicts)
	return nil
}

// runServer handles server execution with signal handling.
func runServer(ctx context.Context, cancel context.CancelFunc, srv *server.Server) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()
		if err := <-serverErrCh; err != nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}
	case err := <-serverErrCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Server stopped successfully")
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	// A local .env is optional; flags and real environment win.
	_ = godotenv.Load()

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}
	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	db, err := database.Open(cfg.DatabasePath, cfg.IsDebug())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		log.Fatalf("Failed to load schema catalog: %v", err)
	}

	store, err := storage.NewStore(cfg.StorageDir)
	if err != nil {
		log.Fatalf("Failed to create document store: %v", err)
	}

	repo := mapping.NewRepository(db)
	if err := seedMappings(repo, cfg.SeedPath); err != nil {
		log.Fatalf("Failed to seed mappings: %v", err)
	}

	records := extraction.NewStore(db)
	extractor := extraction.NewClient(cfg.ExtractionURL, cfg.ClassifierURL, cfg.MaxRetries)
	engine := form.NewEngine(cfg.IsDebug())
	reader := form.NewDescriptorReader(cfg.IsDebug())

	orchestrator := workflow.NewOrchestrator(
		db, repo, records, engine, store, cfg.TemplatePath, workflow.DefaultSteps())

	srv, err := server.NewServer(cfg, catalog, repo, reader, orchestrator, extractor, records)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runServer(ctx, cancel, srv)
}

func printVersion() {
	fmt.Printf("elterngeld-wizard %s\n", version)
	fmt.Printf("  build time: %s\n", buildTime)
	fmt.Printf("  git commit: %s\n", gitCommit)
}
