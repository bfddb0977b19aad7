package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/auriumchain/node/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var (
	keyScheme string
	keyPath   string
)

// genkeyCmd represents the genkey command
var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a new signing key and print its address",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
			return err
		}

		var signer signature.Signer

		switch keyScheme {
		case signature.SchemeECDSA:
			key, err := signature.GenerateECDSA()
			if err != nil {
				return err
			}
			if err := key.Save(keyPath); err != nil {
				return err
			}
			signer = key

		case signature.SchemeDilithium:
			key, err := signature.GenerateDilithiumSeed(keyPath)
			if err != nil {
				return err
			}
			signer = key

		default:
			return fmt.Errorf("unsupported key scheme %q", keyScheme)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "scheme:  %s\nfile:    %s\naddress: %s\n", signer.Scheme(), keyPath, signature.Address(signer.PublicKey()))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(genkeyCmd)
	genkeyCmd.Flags().StringVarP(&keyScheme, "scheme", "k", signature.SchemeECDSA, "Key scheme: ecdsa or dilithium.")
	genkeyCmd.Flags().StringVarP(&keyPath, "out", "o", "zblock/keys/miner.ecdsa", "File the key is written to.")
}
