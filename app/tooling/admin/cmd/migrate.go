package cmd

import (
	"fmt"

	"github.com/auriumchain/node/foundation/blockchain/database/storage"
	"github.com/spf13/cobra"
)

var (
	toKind string
	toPath string
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy the chain from one storage kind into another",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := storage.New(storeKind, storePath, nil)
		if err != nil {
			return err
		}
		defer from.Close()

		to, err := storage.New(toKind, toPath, nil)
		if err != nil {
			return err
		}
		defer to.Close()

		n, err := storage.Migrate(from, to)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "migrated blocks[%d] from %s to %s\n", n, storeKind, toKind)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVar(&toKind, "to", "jsonfile", "Storage kind to migrate into.")
	migrateCmd.Flags().StringVar(&toPath, "to-path", "zblock/export", "Path of the target storage.")
}
