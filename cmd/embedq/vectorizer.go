package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/embedq/embedq"
	"github.com/embedq/embedq/domain/queue"
	"github.com/embedq/embedq/domain/vectorizer"
	"github.com/embedq/embedq/internal/log"
)

// pipelineDefinition is the on-disk shape of a vectorizer definition file.
// YAML and JSON are both accepted; the config block uses the same tagged
// stage documents as the persisted configuration.
type pipelineDefinition struct {
	Name        string         `yaml:"name"`
	SourceTable string         `yaml:"source_table"`
	Config      map[string]any `yaml:"config"`
}

func createCmd() *cobra.Command {
	var (
		envFile string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a vectorizer from a definition file",
		Long: `Create a vectorizer from a YAML or JSON definition file.

Example definition:

  name: articles
  source_table: articles
  config:
    loading:
      implementation: column
      column_name: body
    embedding:
      implementation: openai
      model: text-embedding-3-small
      dimensions: 1536`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(envFile, file)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the vectorizer definition file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runCreate(envFile, file string) error {
	def, cfg, err := loadDefinition(file)
	if err != nil {
		return err
	}

	return withClient(envFile, func(ctx context.Context, client *embedq.Client) error {
		v, err := client.Vectorizers().Create(ctx, def.Name, def.SourceTable, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("created vectorizer %q (id %d) on table %q\n", v.Name(), v.ID(), v.SourceTable())
		return nil
	})
}

// loadDefinition reads and parses a definition file into the domain config.
// The config block is re-encoded as JSON so the tagged-document parser does
// the validation.
func loadDefinition(file string) (pipelineDefinition, vectorizer.Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return pipelineDefinition{}, vectorizer.Config{}, fmt.Errorf("read definition file: %w", err)
	}

	var def pipelineDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return pipelineDefinition{}, vectorizer.Config{}, fmt.Errorf("parse definition file: %w", err)
	}

	raw, err := json.Marshal(def.Config)
	if err != nil {
		return pipelineDefinition{}, vectorizer.Config{}, fmt.Errorf("encode config: %w", err)
	}

	var cfg vectorizer.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return pipelineDefinition{}, vectorizer.Config{}, fmt.Errorf("parse config: %w", err)
	}

	return def, cfg, nil
}

func dropCmd() *cobra.Command {
	var (
		envFile         string
		dropDestination bool
	)

	cmd := &cobra.Command{
		Use:   "drop NAME",
		Short: "Remove a vectorizer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(envFile, func(ctx context.Context, client *embedq.Client) error {
				if err := client.Vectorizers().Remove(ctx, args[0], dropDestination); err != nil {
					return err
				}
				fmt.Printf("dropped vectorizer %q\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().BoolVar(&dropDestination, "drop-destination", false, "Also drop the destination table/view or embedding column")

	return cmd
}

func listCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered vectorizers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(envFile, func(ctx context.Context, client *embedq.Client) error {
				vs, err := client.Vectorizers().List(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSOURCE\tENABLED")
				for _, v := range vs {
					fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", v.ID(), v.Name(), v.SourceTable(), v.Enabled())
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func statusCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "status NAME",
		Short: "Show a vectorizer's queue state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(envFile, func(ctx context.Context, client *embedq.Client) error {
				st, err := client.Vectorizers().Status(ctx, args[0])
				if err != nil {
					return err
				}

				pending := fmt.Sprintf("%d", st.Pending)
				if st.Pending == queue.ApproxOverflow {
					pending = "10000+"
				}

				fmt.Printf("vectorizer: %s\n", st.Vectorizer.Name())
				fmt.Printf("  source:   %s\n", st.Vectorizer.SourceTable())
				fmt.Printf("  enabled:  %t\n", st.Vectorizer.Enabled())
				fmt.Printf("  pending:  %s\n", pending)
				fmt.Printf("  failed:   %d\n", st.Failed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func runCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "run NAME",
		Short: "Run one immediate tick for a vectorizer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(envFile, func(ctx context.Context, client *embedq.Client) error {
				n, err := client.RunNow(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("processed %d items\n", n)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func enableCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "enable NAME",
		Short: "Enable a vectorizer's schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(envFile, func(ctx context.Context, client *embedq.Client) error {
				return client.Vectorizers().Enable(ctx, args[0])
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func disableCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "disable NAME",
		Short: "Disable a vectorizer's schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(envFile, func(ctx context.Context, client *embedq.Client) error {
				return client.Vectorizers().Disable(ctx, args[0])
			})
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

// withClient runs fn against a short-lived client built from the
// environment. Management commands log at WARN so command output stays
// clean.
func withClient(envFile string, fn func(ctx context.Context, client *embedq.Client) error) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	logger := log.NewLogger(log.Format(cfg.LogFormat()), "WARN")

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	return fn(context.Background(), client)
}
