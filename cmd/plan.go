package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"db-merge/internal/engine"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the statements a merge would run, without writing",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadMergeSettings(cmd)
		if err != nil {
			return err
		}
		if err := connect(cmd.Context()); err != nil {
			return err
		}
		return runPlan(cmd.Context(), mergeRequest(settings))
	},
}

func runPlan(ctx context.Context, req engine.Request) error {
	plan, err := engine.NewMerger(DB, Dialect, engine.WithLogger(Logger)).Plan(ctx, req)
	if err != nil {
		return err
	}
	if jsonOut {
		return writeJSON(os.Stdout, plan)
	}

	fmt.Println("[SIMULATION] Dry-Run Mode Active: No data will be written.")
	fmt.Printf("🔍 Creation order for %s:\n", plan.Target)
	for i, name := range plan.CreationOrder {
		fmt.Printf("[%02d] %s\n", i+1, name)
	}
	if len(plan.Existing) > 0 {
		fmt.Printf("Already in target: %v\n", plan.Existing)
	}

	fmt.Println("\n-- structure")
	for _, st := range plan.Setup {
		fmt.Printf("%s;\n", st.SQL)
	}
	fmt.Println("-- data copy runs here, one upsert per source and table")
	for _, st := range plan.Deferred {
		fmt.Printf("%s;\n", st.SQL)
	}
	for _, st := range plan.Indexes {
		fmt.Printf("%s;\n", st.SQL)
	}
	return nil
}

func init() {
	RootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&source1, "source1", "", "first source schema")
	planCmd.Flags().StringVar(&source2, "source2", "", "second source schema")
	planCmd.Flags().StringArrayVar(&sources, "source", nil, "source schema, repeatable")
	planCmd.Flags().StringVar(&target, "target", "", "target schema")
	planCmd.Flags().Bool("create-schema", false, "plan as if the target schema were to be created")
	planCmd.Flags().String("strategy", string(engine.LastWriterWins), "primary key collision strategy")
	planCmd.Flags().Bool("strict-columns", false, "also require identical column names and types")
	planCmd.MarkFlagRequired("target")
	planCmd.MarkFlagsMutuallyExclusive("source", "source1")
	planCmd.MarkFlagsMutuallyExclusive("source", "source2")
}
