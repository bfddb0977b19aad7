// Package cmd contains the admin commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	storeKind string
	storePath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "admin",
	Short:        "Administrative tasks for an aurium node",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&storeKind, "store", "s", "leveldb", "Storage kind: memory, jsonfile, disk or leveldb.")
	rootCmd.PersistentFlags().StringVarP(&storePath, "store-path", "p", "zblock/chain", "Path of the chain storage.")
}
