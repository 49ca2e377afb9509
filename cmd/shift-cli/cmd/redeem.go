package cmd

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(redeemCmd)
}

var redeemCmd = &cobra.Command{
	Use:   "redeem <code>",
	Short: "Redeem a single code on every configured account.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := buildService(loadConfig())

		results, err := service.Redeem(cmd.Context(), args[0])
		if err != nil {
			fatal(err)
		}

		renderResults(results)
	},
}
