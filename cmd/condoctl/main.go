// Package main is condoctl, the operator tool for one-off maintenance runs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var databaseURL string

	rootCmd := &cobra.Command{
		Use:           "condoctl",
		Short:         "Building management maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL != "" {
				return os.Setenv("DATABASE_URL", databaseURL)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "overrides DATABASE_URL")

	rootCmd.AddCommand(
		SweepCmd(),
		RelayCmd(),
		TokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
