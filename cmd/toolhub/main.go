// Package main provides the toolhub CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/richinex/toolhub/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath  string
	dataset     string
	verbose     bool
	auxProvider string
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "toolhub",
		Short: "Tool retrieval and tool call dispatch for agent benchmarks",
		Long: `A CLI for the toolhub tool manager.

Each run targets one dataset. The dataset selects the backend that executes
tool calls (environment steppers, ticketed REST APIs, local functions,
research tools or forwarding services) and the index used to retrieve tools.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML settings file")
	rootCmd.PersistentFlags().StringVarP(&dataset, "dataset", "d", "", "Dataset name (overrides dataset_name)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&auxProvider, "aux-provider", "", "Auxiliary chat provider (openai, anthropic, gemini)")

	rootCmd.AddCommand(serveCmd(ctx))
	rootCmd.AddCommand(retrieveCmd(ctx))
	rootCmd.AddCommand(callCmd(ctx))
	rootCmd.AddCommand(docsCmd(ctx))
	rootCmd.AddCommand(resetCmd(ctx))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		ConfigPath:  configPath,
		Dataset:     dataset,
		Verbose:     verbose,
		AuxProvider: auxProvider,
	}
}

func serveCmd(ctx context.Context) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tool-search server",
		Long: `Serve POST /retrieve from local retrieval indexes.

One index is built per dataset listed under server.datasets (or --dataset).
Datasets without a local corpus are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Serve(ctx, options(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from server.host and server.port)")

	return cmd
}

func retrieveCmd(ctx context.Context) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Retrieve the tools that best match a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Retrieve(ctx, options(), args[0], topK, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of tools to return (default from retrieval.default_top_k)")

	return cmd
}

func callCmd(ctx context.Context) *cobra.Command {
	var rolloutPath string

	cmd := &cobra.Command{
		Use:   "call [tool-call-json]",
		Short: "Dispatch one tool call and print the result",
		Long: `Dispatch a tool call given as JSON, for example:

  toolhub call -d gaia '{"name":"web_search","arguments":{"query":"golang"}}'

The OpenAI {"function":{"name","arguments"}} form and fenced JSON are accepted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Call(ctx, options(), args[0], rolloutPath, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&rolloutPath, "rollout", "", "Path to a JSON rollout state")

	return cmd
}

func docsCmd(ctx context.Context) *cobra.Command {
	var taskType string
	var prefix string
	var verboseDocs bool

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List the dataset's tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Docs(ctx, options(), taskType, prefix, verboseDocs, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&taskType, "task-type", "text", "Task type for GAIA (text, mm, file) and HLE (text, mm)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list tools whose names start with prefix")
	cmd.Flags().BoolVarP(&verboseDocs, "params", "V", false, "Show tool parameters")

	return cmd
}

func resetCmd(ctx context.Context) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the environment and print initial observations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Reset(ctx, options(), batchSize, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Number of episodes (default from environment.batch_size or the dataset)")

	return cmd
}
