package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"db-merge/internal/schema"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the tables of two schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := connect(ctx); err != nil {
			return err
		}

		a, err := schema.Introspect(ctx, DB, Dialect, source1)
		if err != nil {
			return err
		}
		b, err := schema.Introspect(ctx, DB, Dialect, source2)
		if err != nil {
			return err
		}
		settings, err := loadMergeSettings(cmd)
		if err != nil {
			return err
		}
		diff := schema.Compare(a, b, schema.CompareOptions{StrictColumns: settings.StrictColumns})

		if jsonOut {
			return writeJSON(os.Stdout, diff)
		}

		fmt.Printf("🔍 %s vs %s\n", diff.Schema1, diff.Schema2)
		fmt.Printf("Common (%d): %v\n", len(diff.Common), diff.Common)
		fmt.Printf("Only in %s (%d): %v\n", diff.Schema1, len(diff.OnlyInSchema1), diff.OnlyInSchema1)
		fmt.Printf("Only in %s (%d): %v\n", diff.Schema2, len(diff.OnlyInSchema2), diff.OnlyInSchema2)
		for _, c := range diff.Columns {
			fmt.Printf("  column %s.%s: %q vs %q\n", c.Table, c.Column, c.Schema1Type, c.Schema2Type)
		}
		for _, ref := range diff.ExternalReferences {
			fmt.Printf("  external reference: %s\n", ref)
		}
		if diff.Identical() {
			fmt.Println("✓ Schemas can be merged")
		} else {
			fmt.Println("! Schemas differ, merge would be refused")
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVar(&source1, "source1", "", "first schema")
	compareCmd.Flags().StringVar(&source2, "source2", "", "second schema")
	compareCmd.Flags().Bool("strict-columns", false, "also compare column names and types")
	compareCmd.MarkFlagRequired("source1")
	compareCmd.MarkFlagRequired("source2")
}
