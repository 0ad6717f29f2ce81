// Package server exposes the mapping, fill and workflow operations over
// an HTTP API. Handlers stay thin; all logic lives in the domain
// packages.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/config"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/extraction"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/form"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/mapping"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/schema"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/workflow"
)

// Server wires the HTTP API over the domain services.
type Server struct {
	cfg          *config.Config
	catalog      *schema.Catalog
	mappings     *mapping.Repository
	reader       *form.DescriptorReader
	orchestrator *workflow.Orchestrator
	extractor    *extraction.Client
	records      *extraction.Store
	router       *gin.Engine
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(
	cfg *config.Config,
	catalog *schema.Catalog,
	mappings *mapping.Repository,
	reader *form.DescriptorReader,
	orchestrator *workflow.Orchestrator,
	extractor *extraction.Client,
	records *extraction.Store,
) (*Server, error) {
	if mappings == nil || orchestrator == nil {
		return nil, errors.New("server dependencies cannot be nil")
	}

	if !cfg.IsDebug() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:          cfg,
		catalog:      catalog,
		mappings:     mappings,
		reader:       reader,
		orchestrator: orchestrator,
		extractor:    extractor,
		records:      records,
		router:       gin.New(),
	}
	s.router.Use(gin.Recovery())
	if cfg.IsDebug() {
		s.router.Use(gin.Logger())
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/mappings", s.handleListMappings)
		api.POST("/mappings", s.handleCreateMapping)
		api.PUT("/mappings/:id", s.handleUpdateMapping)
		api.DELETE("/mappings/:id", s.handleDeleteMapping)
		api.POST("/mappings/:id/verify", s.handleVerifyMapping)
		api.DELETE("/mappings", s.handleDeleteMappingsByType)
		api.GET("/mappings/export", s.handleExportMappings)
		api.POST("/mappings/import", s.handleImportMappings)
		api.POST("/mappings/resolve", s.handleResolveMappings)

		api.GET("/template/fields", s.handleTemplateFields)

		api.POST("/documents", s.handleIngestDocument)

		api.GET("/workflow/:user", s.handleWorkflowStatus)
		api.POST("/workflow/:user/advance", s.handleAdvance)
		api.POST("/workflow/:user/back", s.handleBack)
		api.POST("/workflow/:user/skip", s.handleSkip)
	}
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", s.cfg.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
