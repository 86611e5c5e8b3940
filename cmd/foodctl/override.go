package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/korjavin/nomnom/internal/nutrition"
	"github.com/korjavin/nomnom/internal/resolver"
)

func newOverrideCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Manage user overrides",
	}
	cmd.AddCommand(newOverrideAddCmd(g), newOverrideDeleteCmd(g))
	return cmd
}

func newOverrideAddCmd(g *globals) *cobra.Command {
	var (
		in                           resolver.OverrideInput
		kcal, protein, carbs, fat    float64
		fiber, sugar, sodium, satFat float64
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or replace an override (replaces any override for the same barcode)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			set := func(name string, v float64) *float64 {
				if !flags.Changed(name) {
					return nil
				}
				return nutrition.Float(v)
			}
			in.Calories = set("kcal", kcal)
			in.ProteinG = set("protein", protein)
			in.CarbsG = set("carbs", carbs)
			in.FatG = set("fat", fat)
			in.FiberG = set("fiber", fiber)
			in.SugarG = set("sugar", sugar)
			in.SodiumG = set("sodium", sodium)
			in.SaturatedFatG = set("saturated-fat", satFat)

			return g.withEngine(cmd, func(e *resolver.Engine) error {
				o, err := e.CreateOverride(cmd.Context(), in)
				if err != nil {
					return err
				}
				if g.asJSON {
					return printJSON(cmd.OutOrStdout(), o)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved override %s for %q (%s)\n", o.ID, o.Name, o.DataQuality)
				if o.Unverified {
					fmt.Fprintf(cmd.OutOrStdout(), "Warning: %s\n", o.Validation.Error())
				}
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.ID, "id", "", "replace the override with this id")
	f.StringVar(&in.Barcode, "barcode", "", "product barcode (8-14 digits)")
	f.StringVar(&in.Name, "name", "", "food name (required)")
	f.StringVar(&in.Brand, "brand", "", "brand")
	f.StringVar(&in.CreatedBy, "by", "", "author of the correction")
	f.StringVar(&in.ServingSize, "serving", "", "serving size, e.g. \"30 g\"")
	f.StringVar(&in.IngredientsText, "ingredients", "", "ingredients text")
	f.StringSliceVar(&in.Categories, "category", nil, "category (repeatable)")
	f.StringSliceVar(&in.Allergens, "allergen", nil, "allergen (repeatable)")
	f.Float64Var(&kcal, "kcal", 0, "calories per 100 g (required)")
	f.Float64Var(&protein, "protein", 0, "protein g per 100 g (required)")
	f.Float64Var(&carbs, "carbs", 0, "carbohydrates g per 100 g (required)")
	f.Float64Var(&fat, "fat", 0, "fat g per 100 g (required)")
	f.Float64Var(&fiber, "fiber", 0, "fiber g per 100 g")
	f.Float64Var(&sugar, "sugar", 0, "sugar g per 100 g")
	f.Float64Var(&sodium, "sodium", 0, "sodium g per 100 g")
	f.Float64Var(&satFat, "saturated-fat", 0, "saturated fat g per 100 g")
	return cmd
}

func newOverrideDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(cmd, func(e *resolver.Engine) error {
				if err := e.DeleteOverride(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted override %s\n", args[0])
				return nil
			})
		},
	}
}
