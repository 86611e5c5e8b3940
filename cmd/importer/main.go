package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/korjavin/nomnom/internal/importer"
)

func main() {
	dump := flag.String("dump", "", "path to JSONL dump, gzip-compressed if it ends in .gz (required)")
	out := flag.String("out", "", "output data directory (required)")
	appendMode := flag.Bool("append", false, "upsert into an existing data directory instead of building a new one")
	verbose := flag.Bool("v", false, "print progress every 100k products")
	flag.Parse()

	if *dump == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: nomnom-importer -dump <path> -out <dir> [-append] [-v]")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting import", "dump", *dump, "out", *out, "append", *appendMode)

	m, err := importer.Import(ctx, importer.Options{
		DumpPath:  *dump,
		OutputDir: *out,
		Append:    *appendMode,
		Verbose:   *verbose,
		Logger:    logger,
	})
	if err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}

	slog.Info("import complete",
		"mode", m.Mode,
		"products", m.ProductCount,
		"indexed", m.IndexedCount,
		"skipped", m.SkippedCount,
		"build_time", m.BuildTime,
	)
	fmt.Printf("Output: %s (%s)\n  Products stored : %d\n  Names indexed   : %d\n  Skipped         : %d\n",
		*out, m.Mode, m.ProductCount, m.IndexedCount, m.SkippedCount)

	if len(m.SkipReasons) > 0 {
		fmt.Println("  Skip reasons:")
		keys := make([]string, 0, len(m.SkipReasons))
		for k := range m.SkipReasons {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %-20s: %d\n", k, m.SkipReasons[k])
		}
	}
}
