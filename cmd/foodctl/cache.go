package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/korjavin/nomnom/internal/cache"
)

func newCacheCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the lookup cache",
	}
	cmd.AddCommand(newCacheListCmd(g), newCachePurgeCmd(g), newCacheDeleteCmd(g))
	return cmd
}

func newCacheListCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withCache(func(c *cache.SQLite) error {
				items, err := c.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if g.asJSON {
					return printJSON(cmd.OutOrStdout(), items)
				}
				for _, it := range items {
					fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-40s %-8s expires %s\n",
						it.Barcode, truncate(it.Name, 40), it.DataQuality, it.ExpiresAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries")
	return cmd
}

func newCachePurgeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withCache(func(c *cache.SQLite) error {
				n, err := c.PurgeExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired entries\n", n)
				return nil
			})
		},
	}
}

func newCacheDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <barcode>",
		Short: "Drop one barcode from the cache so the next lookup refetches it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withCache(func(c *cache.SQLite) error {
				ok, err := c.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("barcode %s is not cached", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted cache entry %s\n", args[0])
				return nil
			})
		},
	}
}
