package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"db-merge/internal/engine"
)

var confirmDrop bool

var dropCmd = &cobra.Command{
	Use:   "drop <schema>",
	Short: "Drop a schema with all its tables and forget its merges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !confirmDrop {
			return fmt.Errorf("refusing to drop %s without --yes", name)
		}

		ctx := cmd.Context()
		if err := connect(ctx); err != nil {
			return err
		}

		res, err := engine.NewMerger(DB, Dialect, engine.WithLogger(Logger), engine.WithHistory(historySchema())).Drop(ctx, name)
		if err != nil {
			return err
		}
		if jsonOut {
			return writeJSON(os.Stdout, res)
		}
		fmt.Printf("✓ Dropped %s: %d tables, %d merge records\n", res.Schema, len(res.DroppedTables), res.ForgottenMerges)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(dropCmd)

	dropCmd.Flags().BoolVarP(&confirmDrop, "yes", "y", false, "confirm the drop")
}
