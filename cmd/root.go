package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-merge/internal/dialect"
	"db-merge/internal/mergeerr"
)

var (
	dsn        string
	DB         *sql.DB
	Dialect    dialect.Dialect
	Logger     *slog.Logger
	cfgFile    string
	DriverName string // "postgres", "pgx" or "sqlserver"
	logLevel   string
	jsonOut    bool
)

var RootCmd = &cobra.Command{
	Use:   "db-merge",
	Short: "Merge two structurally identical schemas into one",
	Long: `
  ____  ____    __  __ _____ ____   ____ _____
 |  _ \| __ )  |  \/  | ____|  _ \ / ___| ____|
 | | | |  _ \  | |\/| |  _| | |_) | |  _|  _|
 | |_| | |_) | | |  | | |___|  _ <| |_| | |___
 |____/|____/  |_|  |_|_____|_| \_\\____|_____|

DB MERGE - Schema Merge Tool
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		Logger = newLogger(viper.GetString("log.level"))
		slog.SetDefault(Logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if DB != nil {
			return DB.Close()
		}
		return nil
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		if jsonOut {
			writeJSONError(os.Stdout, err)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Define flags
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-merge.yaml)")
	RootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database Source Name (DSN)")
	RootCmd.PersistentFlags().StringVar(&DriverName, "driver", "", "database/sql driver (postgres, pgx, sqlserver)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results and errors as JSON")

	viper.BindPFlag("database.dsn", RootCmd.PersistentFlags().Lookup("dsn"))
	viper.BindPFlag("database.driver", RootCmd.PersistentFlags().Lookup("driver"))
	viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			exePath := filepath.Dir(ex)
			viper.AddConfigPath(exePath)
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("db-merge")
		viper.SetConfigType("yaml")
	}

	// DB_MERGE_DATABASE_DSN, DB_MERGE_MERGE_STRATEGY, ...
	viper.SetEnvPrefix("DB_MERGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// connect opens the database chosen by flag, env or config and resolves
// its dialect. Flag and env (database.dsn) take precedence over the
// active entry of the databases list.
func connect(ctx context.Context) error {
	config, err := resolveDBConfig()
	if err != nil {
		return err
	}

	d, err := dialect.GetDialect(config.Driver)
	if err != nil {
		return err
	}

	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return &mergeerr.DatabaseConnectivityError{Stage: "connect", Err: err}
	}

	DB, Dialect, DriverName = db, d, config.Driver
	Logger.Debug("connected", slog.String("name", config.Name), slog.String("driver", config.Driver))
	return nil
}

// defaultSchema is the schema commands fall back to when --schema is empty.
func defaultSchema() string {
	if s := viper.GetString("settings.schema"); s != "" {
		return s
	}
	if Dialect != nil {
		return Dialect.DefaultSchema()
	}
	return "public"
}
