package cmd

import (
	"fmt"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/database/storage"
	"github.com/auriumchain/node/foundation/blockchain/genesis"
	"github.com/auriumchain/node/foundation/blockchain/validator"
	"github.com/spf13/cobra"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Validate every block held by the storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(storeKind, storePath, nil)
		if err != nil {
			return err
		}
		defer store.Close()

		db, err := database.New(genesis.Block(), store, nil)
		if err != nil {
			return err
		}

		if err := validator.New().ValidateChain(db.Blocks()); err != nil {
			return fmt.Errorf("chain not valid: rule[%s]: %w", validator.RuleOf(err), err)
		}

		tip := db.LatestBlock()
		fmt.Fprintf(cmd.OutOrStdout(), "chain valid: height[%d] tip[%s]\n", tip.Index, tip.Hash)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
