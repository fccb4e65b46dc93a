package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"it-asset-manager-api/internal"
	"it-asset-manager-api/internal/config"
	"it-asset-manager-api/internal/logging"
	"it-asset-manager-api/pkg/importer"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	filePath := pflag.String("file", "", "path to the .xlsx workbook")
	mappingPath := pflag.String("mapping", "", "column mapping YAML (default: IMPORT_MAPPING_FILE or built-in)")
	dryRun := pflag.Bool("dry-run", false, "validate rows without writing")
	maxErrors := pflag.Int("max-errors", importer.DefaultMaxErrors, "stop after this many row errors")
	pflag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		fmt.Fprintln(os.Stderr, "Usage: import_excel --file=path.xlsx [--mapping=...] [--dry-run] [--max-errors=50]")
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg, err := config.LoadAndValidate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if *mappingPath == "" {
		*mappingPath = cfg.ImportMappingFile
	}

	ctx := context.Background()
	st, err := internal.OpenStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open asset store")
	}
	defer st.Close()

	file, err := os.Open(*filePath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open Excel file")
	}
	defer file.Close()

	fmt.Printf("Importing from %s into %s/%s (dry_run=%v)\n", *filePath, cfg.StoreDriver, cfg.DBDialect, *dryRun)
	fmt.Println("=" + strings.Repeat("=", 60))

	summary, err := importer.ImportExcel(ctx, st, file, importer.ImportOptions{
		MappingPath: *mappingPath,
		DryRun:      *dryRun,
		MaxErrors:   *maxErrors,
	})
	printSummary(summary)
	if err != nil {
		log.WithError(err).Error("Import failed")
		os.Exit(1)
	}
}

func printSummary(summary importer.ImportSummary) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("IMPORT SUMMARY")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("Total inserted: %d\n", summary.Inserted)
	fmt.Printf("Total updated: %d\n", summary.Updated)
	fmt.Printf("Total skipped: %d\n", summary.Skipped)
	fmt.Printf("Total errors: %d\n", summary.Errors)
	fmt.Printf("Dry run: %v\n", summary.DryRun)

	if len(summary.Sheets) == 0 {
		return
	}
	fmt.Println("\nSheet Details:")
	for _, sheet := range summary.Sheets {
		fmt.Printf("  %s: inserted=%d, updated=%d, skipped=%d, errors=%d\n",
			sheet.Name, sheet.Inserted, sheet.Updated, sheet.Skipped, sheet.Errors)
		if len(sheet.Samples) > 0 {
			fmt.Printf("    Error samples:\n")
			for _, sample := range sheet.Samples {
				fmt.Printf("      Row %d: %s\n", sample.Row, sample.Message)
			}
		}
	}
}
