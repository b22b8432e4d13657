package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"db-merge/internal/engine"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean all data from the tables of a schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := connect(ctx); err != nil {
			return err
		}

		sch, order, err := orderedSchema(ctx)
		if err != nil {
			return err
		}
		if len(tables) > 0 {
			if order, err = filterTables(order, tables); err != nil {
				return err
			}
		}

		if err := engine.Clean(ctx, DB, Dialect, Logger, sch, order); err != nil {
			return err
		}
		fmt.Printf("✓ Cleaned %d tables in %s\n", len(order), sch.Name)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringVar(&schemaName, "schema", "", "schema to clean (default public, or dbo on SQL Server)")
	cleanCmd.Flags().StringSliceVarP(&tables, "tables", "t", []string{}, "Specific tables to clean (comma-separated)")
}
