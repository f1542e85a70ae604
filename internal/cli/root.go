// Package cli provides the command-line interface for treepredict.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/treepredict/pkg/log"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treepredict",
		Short: "treepredict - decision tree inference",
		Long: `treepredict compiles decision trees into stack-machine scripts, encodes
them in the legacy binary format and evaluates feature vectors against
either representation.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			if err := log.SetupLoggerWithWriter(cmd.ErrOrStderr(), cfg.LogLevel); err != nil {
				return err
			}
			if f := ConfigFileUsed(); f != "" {
				log.GetLoggerWithName("cli").Debug("Using config file", "path", f)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./treepredict.yaml)")
	rootCmd.PersistentFlags().String("separator", "", "Opcode script token separator")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().Bool("verify", true, "Verify legacy model checksums")
	rootCmd.PersistentFlags().Int("parallel-threshold", 0, "Rows above which batch prediction runs in parallel")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(NewCompileCommand())
	rootCmd.AddCommand(NewEncodeCommand())
	rootCmd.AddCommand(NewPredictCommand())
	rootCmd.AddCommand(NewInspectCommand())

	return rootCmd
}

// getConfig returns the config loaded by the root command.
func getConfig(cmd *cobra.Command) *Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(*Config); ok {
		return cfg
	}
	return &Config{Separator: ";", LogLevel: "info", Verify: true}
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
