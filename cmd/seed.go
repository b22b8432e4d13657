package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-merge/internal/engine"
	"db-merge/internal/schema"
)

var (
	count      int
	seedValue  int64
	clean      bool
	tables     []string
	schemaName string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill a schema with random data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := connect(ctx); err != nil {
			return err
		}

		// Fetch count from Viper (Flag > Config > Default)
		targetCount := viper.GetInt("settings.default_count")
		if count > 0 { // Flag override
			targetCount = count
		}

		sch, order, err := orderedSchema(ctx)
		if err != nil {
			return err
		}

		// Filter tables strategy:
		// 1. Check CLI flag --tables
		// 2. If empty, check config settings.tables
		// 3. If both empty, process all tables.
		targetTableNames := tables
		if len(targetTableNames) == 0 {
			targetTableNames = viper.GetStringSlice("settings.tables")
		}
		if len(targetTableNames) > 0 {
			order, err = filterTables(order, targetTableNames)
			if err != nil {
				return err
			}
		}

		// Dry Run
		if dryRun {
			fmt.Println("[SIMULATION] Dry-Run Mode Active: No data will be written.")
			fmt.Printf("🔍 Analysis Results:\n")
			for i, name := range order {
				var deps []string
				for _, fk := range sch.Tables[name].ForeignKeys {
					deps = append(deps, fk.RefTable)
				}
				fmt.Printf("[%02d] %s (Dependencies: %v)\n", i+1, name, deps)
			}
			return nil
		}

		// Clean if requested
		if clean {
			if err := engine.Clean(ctx, DB, Dialect, Logger, sch, order); err != nil {
				return err
			}
		}

		Logger.Info("starting seed", slog.String("schema", sch.Name), slog.Int("count", targetCount))
		start := time.Now()

		// 2. Setup Progress Bar
		var onProgress func()
		if !jsonOut {
			uiprogress.Start()
			bar := uiprogress.AddBar(len(order) * targetCount).AppendCompleted().PrependElapsed()
			bar.PrependFunc(func(b *uiprogress.Bar) string {
				return "Processing: "
			})
			onProgress = func() { bar.Incr() }
		}

		// 3. Seed
		seeder := engine.NewSeeder(DB, Dialect, Logger, seedValue)
		results, err := seeder.Seed(ctx, sch, order, targetCount, onProgress)

		if !jsonOut {
			uiprogress.Stop()
		}

		if err != nil {
			return err
		}
		if jsonOut {
			return writeJSON(os.Stdout, results)
		}

		// 4. Final Report
		fmt.Println("\n📊 Summary Report (Dependency Order):")
		total := 0
		for i, r := range results {
			icon := "✓"
			if r.Status != "OK" {
				icon = "!"
			}
			fmt.Printf("[%s] [%02d/%02d] %-20s : %d rows (Target: %d) - %s\n",
				icon, i+1, len(results), r.Table, r.Actual, r.Target, r.Status)
			if r.ErrorMsg != "" {
				fmt.Printf("    └ Error: %s\n", r.ErrorMsg)
			}
			total += r.Actual
		}
		fmt.Println("--------------------------------------------------")
		fmt.Printf("Total Operations: %d\n", total)
		Logger.Info("seed done", slog.Duration("elapsed", time.Since(start)))

		return nil
	},
}

// orderedSchema introspects --schema and returns it with its creation order.
func orderedSchema(ctx context.Context) (*schema.Schema, []string, error) {
	name := schemaName
	if name == "" {
		name = defaultSchema()
	}

	Logger.Info("analyzing schema", slog.String("schema", name))
	sch, err := schema.Introspect(ctx, DB, Dialect, name)
	if err != nil {
		return nil, nil, err
	}
	g, err := schema.BuildGraph(sch.TableNames(), schema.ForeignKeysOf(sch))
	if err != nil {
		return nil, nil, err
	}
	order, err := g.Order()
	if err != nil {
		return nil, nil, err
	}
	return sch, order, nil
}

// filterTables keeps the requested tables, case-insensitively, in creation order.
func filterTables(order, requested []string) ([]string, error) {
	reqTables := make(map[string]bool)
	for _, t := range requested {
		reqTables[strings.ToLower(t)] = true
	}

	var out []string
	for _, name := range order {
		if reqTables[strings.ToLower(name)] {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no matching tables found for inputs: %v", requested)
	}
	return out, nil
}

func init() {
	RootCmd.AddCommand(seedCmd)

	// CLI Flags
	seedCmd.Flags().StringVar(&schemaName, "schema", "", "schema to fill (default public, or dbo on SQL Server)")
	seedCmd.Flags().IntVar(&count, "count", 0, "Number of records to generate per table (overrides config)")
	seedCmd.Flags().Int64Var(&seedValue, "seed", time.Now().UnixNano(), "random seed; the same seed produces the same rows")
	seedCmd.Flags().BoolVar(&clean, "clean", false, "Clean tables before filling")
	seedCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Simulate the process without writing to DB")
	seedCmd.Flags().StringSliceVarP(&tables, "tables", "t", []string{}, "Specific tables to fill (comma-separated)")

	viper.SetDefault("settings.default_count", 100)
}
