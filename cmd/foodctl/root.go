package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/korjavin/nomnom/internal/cache"
	"github.com/korjavin/nomnom/internal/config"
	"github.com/korjavin/nomnom/internal/override"
	"github.com/korjavin/nomnom/internal/reference"
	"github.com/korjavin/nomnom/internal/resolver"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	dataDir     string
	overrideDir string
	cachePath   string
	asJSON      bool
	verbose     bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "foodctl",
		Short:         "foodctl inspects and maintains a nomnom food database",
		Long:          "foodctl resolves barcodes and names against the local reference dataset, manages user overrides and maintains the lookup cache.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			if g.dataDir == "" {
				g.dataDir = os.Getenv("DATA_DIR")
			}
			if g.overrideDir == "" {
				g.overrideDir = os.Getenv("OVERRIDE_DIR")
			}
			if g.overrideDir == "" && g.dataDir != "" {
				g.overrideDir = g.dataDir + "-overrides"
			}
			if g.cachePath == "" {
				g.cachePath = os.Getenv("CACHE_PATH")
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.dataDir, "data-dir", "", "reference dataset directory (default $DATA_DIR)")
	pf.StringVar(&g.overrideDir, "override-dir", "", "override store directory (default $OVERRIDE_DIR or <data-dir>-overrides)")
	pf.StringVar(&g.cachePath, "cache", "", "SQLite cache path (default $CACHE_PATH, in-memory when empty)")
	pf.BoolVar(&g.asJSON, "json", false, "print JSON instead of text")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newLookupCmd(g),
		newSearchCmd(g),
		newOverrideCmd(g),
		newCacheCmd(g),
	)
	return root
}

func (g *globals) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// withEngine opens every store, runs fn against a resolver and closes the
// stores again.
func (g *globals) withEngine(cmd *cobra.Command, fn func(*resolver.Engine) error) error {
	if g.dataDir == "" {
		return errors.New("--data-dir or DATA_DIR is required")
	}
	logger := g.logger(cmd)

	ref, err := reference.OpenReadOnly(g.dataDir, logger)
	if err != nil {
		return err
	}
	defer ref.Close()

	ov, err := override.Open(g.overrideDir)
	if err != nil {
		return err
	}
	defer ov.Close()

	var c resolver.Cache = cache.NewMemory(nil)
	if g.cachePath != "" {
		sq, err := cache.OpenSQLite(g.cachePath, nil)
		if err != nil {
			return err
		}
		defer sq.Close()
		c = sq
	}

	return fn(resolver.New(ov, ref, c, resolver.WithLogger(logger)))
}

// withCache opens the SQLite cache for maintenance commands.
func (g *globals) withCache(fn func(*cache.SQLite) error) error {
	if g.cachePath == "" {
		return errors.New("--cache or CACHE_PATH is required")
	}
	c, err := cache.OpenSQLite(g.cachePath, nil)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(b))
	return nil
}
