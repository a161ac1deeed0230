// Package main implements the quern inspection tool: it opens a database
// from a schema document and a configuration file, then prints per-table
// row counts, row-id high-water marks, and each index's kind and columns.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/quern/quern/internal/config"
	"github.com/quern/quern/internal/db"
	"github.com/quern/quern/internal/schema"
)

var version = "dev"

func main() {
	var (
		schemaFile  string
		configFile  string
		verbose     bool
		showVersion bool
	)

	flag.StringVar(&schemaFile, "schema", "", "Path to the YAML schema document")
	flag.StringVar(&configFile, "config", "", "Path to the engine configuration file (YAML)")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Quern - In-process relational query engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: quern --schema schema.yaml [--config config.yaml]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  quern --schema hr.yaml\n")
		fmt.Fprintf(os.Stderr, "  quern --schema hr.yaml --config quern.yaml\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("quern %s\n", version)
		return
	}
	if schemaFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(schemaFile, configFile, verbose); err != nil {
		fmt.Fprintf(os.Stderr, "quern: %v\n", err)
		os.Exit(1)
	}
}

func run(schemaFile, configFile string, verbose bool) error {
	sch, err := schema.Load(schemaFile)
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
	}

	logger := zap.NewNop()
	if verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	ctx := context.Background()
	database, err := db.Open(ctx, cfg, sch, logger)
	if err != nil {
		return err
	}
	defer database.Close(ctx)

	fmt.Printf("database %q (schema version %d, store %s)\n",
		sch.Name(), sch.Version(), cfg.Store.Type)
	for _, table := range sch.Tables() {
		fmt.Printf("  %-24s %8d rows   high-water %d\n",
			table.Name(), database.RowCount(table.Name()),
			database.HighWaterMark(table.Name()))
		for _, idx := range table.Indexes() {
			kind := "index"
			if idx.PrimaryKey {
				kind = "primary"
			} else if idx.Unique {
				kind = "unique"
			}
			fmt.Printf("    %-22s %s on (%v)\n", idx.Name, kind, idx.ColumnNames())
		}
	}
	return nil
}
