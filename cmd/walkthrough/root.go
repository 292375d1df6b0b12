package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/livetemplate/walkthrough"
	"github.com/livetemplate/walkthrough/internal/content"
	"github.com/livetemplate/walkthrough/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "walkthrough",
	Short: "Walkthrough renders interactive tutorials",
	Long: `Walkthrough turns markdown pages into interactive tutorials: prose, code
samples that run inline, and input widgets whose values live per session.

Without a directory or page argument the built-in Tech Trek tutorial is used.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelName, _ := cmd.Flags().GetString("log-level")
		level, err := logging.ParseLevel(levelName)
		if err != nil {
			return err
		}
		logger = logging.New(level)
		slog.SetDefault(logger)
		return nil
	},
}

// logger is configured from --log-level before any command runs.
var logger = logging.NewNop()

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRegistry returns the live funcs compiled into this binary.
func newRegistry() *walkthrough.Registry {
	return content.Registry()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to walkthrough.yaml (default: <dir>/walkthrough.yaml)")
}
