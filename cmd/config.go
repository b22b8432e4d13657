package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-merge/internal/engine"
)

type DBConfig struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Active bool   `mapstructure:"active"`
}

// GetActiveDBConfig returns the currently active database configuration.
func GetActiveDBConfig() (*DBConfig, error) {
	var configs []DBConfig

	if err := viper.UnmarshalKey("databases", &configs); err != nil {
		return nil, fmt.Errorf("failed to parse databases config: %w", err)
	}

	var activeConfig *DBConfig
	count := 0

	for i := range configs {
		if configs[i].Active {
			activeConfig = &configs[i]
			count++
		}
	}

	if count == 0 {
		return nil, fmt.Errorf("no active database found in config (set active: true)")
	}
	if count > 1 {
		return nil, fmt.Errorf("multiple active databases found (only one can be active)")
	}

	return activeConfig, nil
}

// resolveDBConfig picks the connection: database.dsn (flag or env) first,
// then the active entry of the databases list.
func resolveDBConfig() (*DBConfig, error) {
	if connStr := viper.GetString("database.dsn"); connStr != "" {
		driver := viper.GetString("database.driver")
		if driver == "" {
			driver = detectDriver(connStr)
		}
		return &DBConfig{Name: "CLI", Driver: driver, DSN: connStr, Active: true}, nil
	}

	config, err := GetActiveDBConfig()
	if err != nil {
		return nil, fmt.Errorf("no database configured: use --dsn or a databases entry in db-merge.yaml: %w", err)
	}
	if config.Driver == "" {
		config.Driver = detectDriver(config.DSN)
	}
	return config, nil
}

// detectDriver guesses the driver from the DSN when none is given.
func detectDriver(connStr string) string {
	lower := strings.ToLower(connStr)
	switch {
	case strings.HasPrefix(lower, "sqlserver://"), strings.Contains(lower, "server=") && strings.Contains(lower, "database="):
		return "sqlserver"
	default:
		return "postgres"
	}
}

// mergeSettings holds the merge.* keys.
type mergeSettings struct {
	CreateNewSchema bool          `mapstructure:"create_new_schema"`
	Strategy        string        `mapstructure:"strategy"`
	StrictColumns   bool          `mapstructure:"strict_columns"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RecordHistory   bool          `mapstructure:"record_history"`
}

// loadMergeSettings reads the merge.* keys (config or env) and lets any
// flag set on cmd override them.
func loadMergeSettings(cmd *cobra.Command) (mergeSettings, error) {
	s := mergeSettings{
		CreateNewSchema: viper.GetBool("merge.create_new_schema"),
		Strategy:        viper.GetString("merge.strategy"),
		StrictColumns:   viper.GetBool("merge.strict_columns"),
		Timeout:         viper.GetDuration("merge.timeout"),
		RecordHistory:   !viper.IsSet("merge.record_history") || viper.GetBool("merge.record_history"),
	}
	flags := cmd.Flags()
	if flags.Changed("create-schema") {
		s.CreateNewSchema, _ = flags.GetBool("create-schema")
	}
	if flags.Changed("strategy") {
		s.Strategy, _ = flags.GetString("strategy")
	}
	if flags.Changed("strict-columns") {
		s.StrictColumns, _ = flags.GetBool("strict-columns")
	}
	if flags.Changed("timeout") {
		s.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("record-history") {
		s.RecordHistory, _ = flags.GetBool("record-history")
	}
	if _, err := engine.ParseStrategy(s.Strategy); err != nil {
		return s, fmt.Errorf("invalid merge.strategy: %w", err)
	}
	if s.Timeout < 0 {
		return s, fmt.Errorf("invalid merge.timeout: %s", s.Timeout)
	}
	return s, nil
}

// mergeRequest builds the request from the source and target flags.
func mergeRequest(s mergeSettings) engine.Request {
	return engine.Request{
		SourceSchema1:   source1,
		SourceSchema2:   source2,
		Sources:         sources,
		TargetSchema:    target,
		CreateNewSchema: s.CreateNewSchema,
		Strategy:        engine.Strategy(s.Strategy),
		StrictColumns:   s.StrictColumns,
	}
}

// historySchema is the schema holding schema_merges.
func historySchema() string {
	if s := viper.GetString("merge.history_schema"); s != "" {
		return s
	}
	return Dialect.DefaultSchema()
}
