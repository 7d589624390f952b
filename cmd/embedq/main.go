// Package main is the entry point for the embedq CLI.
package main

import (
	"fmt"
	"os"

	"github.com/embedq/embedq/internal/config"
	"github.com/spf13/cobra"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embedq",
		Short: "Embedding sync engine",
		Long:  `Embedq keeps database tables and their vector embeddings in sync through declarative vectorizer pipelines.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(workerCmd())
	cmd.AddCommand(createCmd())
	cmd.AddCommand(dropCmd())
	cmd.AddCommand(listCmd())
	cmd.AddCommand(statusCmd())
	cmd.AddCommand(runCmd())
	cmd.AddCommand(enableCmd())
	cmd.AddCommand(disableCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from a .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("embedq version %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
