package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/korjavin/nomnom/internal/nutrition"
	"github.com/korjavin/nomnom/internal/resolver"
)

func newLookupCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <barcode>",
		Short: "Resolve a barcode through overrides, cache and the reference dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(cmd, func(e *resolver.Engine) error {
				rec, err := e.ResolveByBarcode(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if g.asJSON {
					return printJSON(cmd.OutOrStdout(), rec)
				}
				printRecord(cmd.OutOrStdout(), rec)
				return nil
			})
		},
	}
}

func newSearchCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search foods by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(cmd, func(e *resolver.Engine) error {
				recs, err := e.ResolveByText(cmd.Context(), strings.Join(args, " "), limit)
				if err != nil {
					return err
				}
				if g.asJSON {
					return printJSON(cmd.OutOrStdout(), recs)
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No results.")
					return nil
				}
				for _, r := range recs {
					fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-40s %8s kcal  [%s, %s]\n",
						r.Barcode, truncate(r.Name, 40), formatFloat(r.Calories), r.Source, r.DataQuality)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results (max 100)")
	return cmd
}

func printRecord(w io.Writer, r nutrition.Record) {
	fmt.Fprintf(w, "Barcode: %s\n", r.Barcode)
	fmt.Fprintf(w, "Food: %s\n", r.Name)
	if r.Brand != "" {
		fmt.Fprintf(w, "Brand: %s\n", r.Brand)
	}
	fmt.Fprintf(w, "Source: %s", r.Source)
	if r.OverrideID != "" {
		fmt.Fprintf(w, " (%s)", r.OverrideID)
	}
	fmt.Fprintf(w, "\nQuality: %s\n", r.DataQuality)
	fmt.Fprintf(w, "Calories: %s\nProtein: %sg\nCarbs: %sg\nFat: %sg\n",
		formatFloat(r.Calories), formatFloat(r.ProteinG), formatFloat(r.CarbsG), formatFloat(r.FatG))
	if r.Unverified && r.Validation != nil {
		fmt.Fprintf(w, "Warning: unverified data (%s)\n", r.Validation.Error())
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
