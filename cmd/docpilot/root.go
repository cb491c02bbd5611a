package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docpilot/internal/config"
	"docpilot/internal/logging"
)

var (
	cfgPath   string
	debugMode bool

	cfg       *config.Config
	appLogger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "docpilot",
	Short:         "Conversational Q&A over technical documentation",
	Long:          "docpilot ingests documentation pages, indexes them for similarity search,\nand answers questions grounded in the indexed content.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if debugMode {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}

		_, level, jsonFormat, categories := cfg.LoggingOptions()
		if err := logging.Initialize(".", logging.Options{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      level,
			JSONFormat: jsonFormat,
			Categories: categories,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		if cfg.Logging.DebugMode {
			appLogger, err = zap.NewDevelopment()
		} else {
			appLogger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLogger != nil {
			appLogger.Sync()
		}
		logging.CloseAll()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "docpilot.yaml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the docpilot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
	},
}
