package cmd

import (
	"fmt"
	"time"

	"github.com/auriumchain/node/foundation/blockchain/p2p"
	"github.com/spf13/cobra"
)

var (
	caDir    string
	certDir  string
	hosts    []string
	validFor time.Duration
)

// gencertsCmd represents the gencerts command
var gencertsCmd = &cobra.Command{
	Use:   "gencerts",
	Short: "Issue node TLS credentials, creating the network authority when missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ca, err := p2p.LoadAuthority(caDir)
		if err != nil {
			ca, err = p2p.GenerateAuthority(validFor)
			if err != nil {
				return err
			}
			if err := ca.Save(caDir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created network authority in %s\n", caDir)
		}

		creds, err := ca.Issue(hosts, validFor)
		if err != nil {
			return err
		}

		if err := creds.Save(certDir); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "issued node credentials in %s for %v\n", certDir, hosts)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(gencertsCmd)
	gencertsCmd.Flags().StringVar(&caDir, "ca-dir", "zblock/ca", "Directory of the network authority.")
	gencertsCmd.Flags().StringVar(&certDir, "out", "zblock/tls", "Directory the node credentials are written to.")
	gencertsCmd.Flags().StringSliceVar(&hosts, "hosts", []string{"127.0.0.1", "localhost"}, "Hosts and addresses the certificate is valid for.")
	gencertsCmd.Flags().DurationVar(&validFor, "valid-for", 365*24*time.Hour, "Validity of the issued certificates.")
}
