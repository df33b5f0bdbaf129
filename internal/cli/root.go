// Package cli defines the cobra commands of the marco binary.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-voice/internal/cli"

var (
	configPath string
	version    = "dev" // set via ldflags at build time

	logger = otelslog.NewLogger(scopeName)
)

var rootCmd = &cobra.Command{
	Use:   "marco",
	Short: "Wake phrase driven voice assistant",
	Long: `marco listens for a wake phrase, greets you and answers spoken
questions one at a time until it hears a goodbye phrase.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(cmd, args)
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file")
	rootCmd.Flags().BoolVar(&noTUI, "no-tui", false, "Print session events instead of the interactive view")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}
