package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-merge/internal/engine"
)

var (
	source1 string
	source2 string
	sources []string
	target  string
	dryRun  bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge source schemas into a target schema",
	Long: `Copies every table of --source1 and --source2, or of every --source in
order, into --target inside one transaction. All sources must contain the
same set of tables. Rows that collide on the primary key are resolved by
--strategy. Committed merges are recorded in schema_merges.`,
	Example: `  db-merge merge --source1 north --source2 south --target merged --create-schema
  db-merge merge --source a --source b --source c --target abc --create-schema`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadMergeSettings(cmd)
		if err != nil {
			return err
		}
		req := mergeRequest(settings)

		ctx := cmd.Context()
		if settings.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
			defer cancel()
		}

		if err := connect(ctx); err != nil {
			return err
		}

		if dryRun {
			return runPlan(ctx, req)
		}

		var opts []engine.Option
		opts = append(opts, engine.WithLogger(Logger))
		if settings.RecordHistory {
			opts = append(opts, engine.WithHistory(historySchema()))
		}

		// 1. Setup Progress Bar (lazily, once the table count is known)
		var bar *uiprogress.Bar
		current := &tableLabel{}
		if !jsonOut {
			opts = append(opts, engine.WithObserver(func(ev engine.Event) {
				if ev.State != engine.StateCopyingData || ev.Table == "" {
					return
				}
				if bar == nil {
					uiprogress.Start()
					bar = uiprogress.AddBar(ev.Total).AppendCompleted().PrependElapsed()
					bar.PrependFunc(func(b *uiprogress.Bar) string {
						return fmt.Sprintf("Merging %-20s ", current.Get())
					})
				}
				current.Set(ev.Table)
				bar.Set(ev.Done)
			}))
		}

		// 2. Merge
		start := time.Now()
		res, err := engine.NewMerger(DB, Dialect, opts...).Merge(ctx, req)
		if bar != nil {
			uiprogress.Stop()
		}
		if err != nil {
			return err
		}

		if jsonOut {
			return writeJSON(os.Stdout, res)
		}

		// 3. Final Report
		fmt.Println("\n📊 Summary Report (Creation Order):")
		var total int64
		names := req.SourceSchemas()
		for i, tr := range res.Tables {
			note := "created"
			if tr.Existed {
				note = "existing"
			}
			from := make([]string, len(tr.FromSources))
			for j, n := range tr.FromSources {
				from[j] = fmt.Sprintf("from %s: %d", names[j], n)
			}
			fmt.Printf("[✓] [%02d/%02d] %-20s : %d rows (%s) - %s\n",
				i+1, len(res.Tables), tr.Table, tr.TargetRows, strings.Join(from, ", "), note)
			total += tr.TargetRows
		}
		if len(res.SelfReferencing) > 0 {
			fmt.Printf("Self-referencing tables: %v\n", res.SelfReferencing)
		}
		fmt.Println("--------------------------------------------------")
		fmt.Printf("Target %s: %d tables, %d rows (%s)\n", req.TargetSchema, len(res.TargetSchemaTables), total, res.Strategy)
		Logger.Info("merge done", slog.Duration("elapsed", time.Since(start)))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(mergeCmd)

	// CLI Flags
	mergeCmd.Flags().StringVar(&source1, "source1", "", "first source schema")
	mergeCmd.Flags().StringVar(&source2, "source2", "", "second source schema; wins primary key collisions under last-writer-wins")
	mergeCmd.Flags().StringArrayVar(&sources, "source", nil, "source schema, repeatable; later sources win collisions under last-writer-wins")
	mergeCmd.Flags().StringVar(&target, "target", "", "target schema")
	mergeCmd.Flags().Bool("create-schema", false, "create the target schema when it does not exist")
	mergeCmd.Flags().String("strategy", string(engine.LastWriterWins), "primary key collision strategy (last-writer-wins, first-writer-wins)")
	mergeCmd.Flags().Bool("strict-columns", false, "also require identical column names and types")
	mergeCmd.Flags().Duration("timeout", 0, "abort and roll back after this long (0 = no limit)")
	mergeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statements without writing to DB")
	mergeCmd.Flags().Bool("record-history", true, "record the merge in schema_merges")
	mergeCmd.MarkFlagRequired("target")
	mergeCmd.MarkFlagsMutuallyExclusive("source", "source1")
	mergeCmd.MarkFlagsMutuallyExclusive("source", "source2")

	viper.SetDefault("merge.strategy", string(engine.LastWriterWins))
}

// tableLabel is the table name shown next to the bar. The observer writes it
// from the merge goroutine while uiprogress renders it from its own.
type tableLabel struct {
	mu   sync.Mutex
	name string
}

func (l *tableLabel) Set(name string) {
	l.mu.Lock()
	l.name = name
	l.mu.Unlock()
}

func (l *tableLabel) Get() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}
