package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"diecastscan/internal/catalog"
	"diecastscan/internal/importing"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("diecast-import")
	var (
		dbPath      = fs.StringLong("db", "diecast.db", "Database file path")
		dumpFile    = fs.StringLong("dump", "", "JSON dump file to import")
		wikiAPI     = fs.StringLong("wiki-api", "", "MediaWiki api.php URL to scrape instead of a dump file")
		brand       = fs.StringLong("brand", "Hot Wheels", "Brand recorded on imported cars")
		workers     = fs.IntLong("workers", 4, "Concurrent page fetches when scraping")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("DIECAST"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if (*dumpFile == "") == (*wikiAPI == "") {
		slog.Error("Exactly one of --dump or --wiki-api is required")
		os.Exit(1)
	}

	db, err := catalog.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var models []importing.Model
	if *dumpFile != "" {
		models, err = importing.LoadDumpFile(*dumpFile)
		if err != nil {
			slog.Error("Failed to load dump file", "error", err)
			os.Exit(1)
		}
	} else {
		ctx := context.Background()
		wiki := importing.NewWikiClient(*wikiAPI, *workers)

		slog.Info("Listing wiki pages...", "api", *wikiAPI)
		titles, err := wiki.PageTitles(ctx)
		if err != nil {
			slog.Error("Failed to list pages", "error", err)
			os.Exit(1)
		}

		slog.Info("Fetching pages...", "pages", len(titles), "workers", *workers)
		models, err = wiki.FetchModels(ctx, titles)
		if err != nil {
			slog.Error("Failed to fetch pages", "error", err)
			os.Exit(1)
		}
	}

	stats, err := importing.Load(db, *brand, models)
	if err != nil {
		slog.Error("Import failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Import complete",
		"cars", stats.Cars,
		"variants", stats.Variants,
		"skipped", stats.Skipped,
	)
}
