// Package cmd implements the critd command line interface.
package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "critd",
	Short: "Query service for registered resources",
	Long: `critd serves registered resources over HTTP with a filter/order/
fields/limit query parameter surface compiled into SQL.

Models, relations and resources are declared in the config file; the
server exposes one list endpoint per resource.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
}
