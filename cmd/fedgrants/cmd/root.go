package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fedgrants-backend/cmd/fedgrants/globals"
	"fedgrants-backend/internal/pipeline"
	"fedgrants-backend/internal/telemetry"
	"fedgrants-backend/lib/configutil"
	configlibsql "fedgrants-backend/lib/configutil/libsql"
	libtelemetry "fedgrants-backend/lib/telemetry"
	"fedgrants-backend/lib/util/serviceutil"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	dumpDir    string
)

var shutdownTelemetry = func(context.Context) error { return nil }

var rootCmd = &cobra.Command{
	Use:   "fedgrants",
	Short: "fedgrants scrapes federal grant awards into a searchable database.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		libtelemetry.InitSlog(verbose)

		tel, err := libtelemetry.SetupFromEnv(cmd.Context(), "fedgrants")
		if err == nil {
			shutdownTelemetry = tel.Shutdown
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("setup telemetry: %w", err)
		}

		cfg, err := configutil.ReadConfig[pipeline.Config](configPath)
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no config found, using defaults", "path", configPath)
			err = nil
		}
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}

		cmd.SetContext(globals.Set(cmd.Context(), &globals.Value{
			Config:  cfg,
			Tel:     telemetry.SlogAPI{},
			DumpDir: dumpDir,
		}))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		err := shutdownTelemetry(context.Background())
		if err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	},
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "Path to the config file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging/instrumentation.")
	rootCmd.PersistentFlags().StringVar(&dumpDir, "dump-dir", "", "Write every source http exchange into this directory when verbose.")
}

func Execute() {
	ctx := serviceutil.SignalContext()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDB opens the database at path when given, the configured database otherwise.
func openDB(path string, configured configlibsql.Struct, schema string) (*sql.DB, error) {
	if path != "" {
		configured = configlibsql.Struct{File: path}
	}
	return configured.OpenDB(schema)
}
