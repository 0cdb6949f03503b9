package main

import (
	"fmt"
	"os"

	"reportforms/internal/config"
	"reportforms/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const envConfig = "FORMS_CONFIG"

var (
	configPath string
	verbose    bool
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "reportforms",
	Short: "Incident report forms service",
	Long: `Serves the accident, occurrence and alert report forms: autosaved
fields with inline validation, Word generation from templates, image
galleries and PDF conversion.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $"+envConfig+" or config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(serveCmd, renderCmd)
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv(envConfig)
}

func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
