// Command fieldmap-export dumps the field coordinate export of an
// AcroForm PDF template as JSON, for feeding the semantic classifier or
// diffing template revisions.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/form"
)

var (
	outputPath = flag.String("o", "", "Write output to file instead of stdout")
	verbose    = flag.Bool("verbose", false, "Print per-field diagnostics to stderr")
	help       = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: PDF template path required\n\n")
		printUsage()
		os.Exit(1)
	}

	templatePath := flag.Arg(0)
	if _, err := os.Stat(templatePath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found: %s\n", templatePath)
		os.Exit(1)
	}

	reader := form.NewDescriptorReader(*verbose)
	info, err := reader.ReadFile(templatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading template: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		for _, f := range info.Fields {
			fmt.Fprintf(os.Stderr, "field %-40s type=%-8s page=%d\n", f.Name, f.Type, f.Page)
		}
	}

	export := form.BuildCoordinateExport(filepath.Base(templatePath), info)
	data, err := export.MarshalIndent()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding export: %v\n", err)
		os.Exit(1)
	}

	if *outputPath == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(*outputPath, data, 0o640); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d fields to %s\n", len(export.Fields), *outputPath)
}

func printHelp() {
	fmt.Println("fieldmap-export - dump AcroForm field coordinates as JSON")
	fmt.Println()
	printUsage()
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -o FILE       Write output to FILE instead of stdout")
	fmt.Println("  -verbose      Print per-field diagnostics to stderr")
	fmt.Println("  -help         Show this help message")
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] template.pdf\n", os.Args[0])
}
