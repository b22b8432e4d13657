package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"db-merge/internal/engine"
	"db-merge/internal/schema"
)

// schemasReport is the --json shape of the schemas command.
type schemasReport struct {
	Schemas []schema.SchemaInfo  `json:"schemas"`
	Merges  []engine.MergeRecord `json:"merges"`
}

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List user schemas, their table counts and the recorded merges",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := connect(ctx); err != nil {
			return err
		}

		infos, err := schema.ListSchemas(ctx, DB, Dialect)
		if err != nil {
			return err
		}
		merges, err := engine.NewMerger(DB, Dialect, engine.WithLogger(Logger), engine.WithHistory(historySchema())).History(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			return writeJSON(os.Stdout, schemasReport{Schemas: infos, Merges: merges})
		}

		for _, info := range infos {
			fmt.Printf("%-30s %d tables\n", info.Name, info.TableCount)
		}
		if len(merges) == 0 {
			return nil
		}
		fmt.Println("\n🔀 Merges (newest first):")
		for _, rec := range merges {
			fmt.Printf("%-20s <- %-30s %s, %d tables, %d rows (%s)\n",
				rec.Target, strings.Join(rec.Sources, ", "), rec.Strategy,
				rec.TableCount, rec.TotalRows, rec.MergedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(schemasCmd)
}
