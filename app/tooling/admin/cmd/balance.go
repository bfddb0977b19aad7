package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var url string

// balanceCmd represents the balance command
var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Print the balance of an address as seen by a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(fmt.Sprintf("%s/v1/balance/%s", url, args[0]))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("node responded %s", resp.Status)
		}

		var bal struct {
			Address string `json:"address"`
			Balance uint64 `json:"balance"`
			Height  uint64 `json:"height"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&bal); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "address: %s\nbalance: %d\nheight:  %d\n", bal.Address, bal.Balance, bal.Height)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}
