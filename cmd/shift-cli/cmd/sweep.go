package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var lookback time.Duration

func init() {
	sweepCmd.Flags().DurationVar(&lookback, "lookback", 24*time.Hour, "How far back to scan key sources.")
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Scan every key source and redeem each discovered code on every account.",
	Run: func(cmd *cobra.Command, args []string) {
		service := buildService(loadConfig())

		result, err := service.Sweep(cmd.Context(), lookback)
		if err != nil {
			fatal(err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Code", "Sources", "Redeemed", "Failed"})
		for _, item := range result.Items {
			succeeded, failed := 0, 0
			for _, r := range item.Results {
				if r.Success {
					succeeded++
				} else {
					failed++
				}
			}
			t.AppendRow(table.Row{item.Code, strings.Join(item.Sources, ", "), succeeded, failed})
		}
		t.Render()

		fmt.Printf(
			"%d keys, %d attempts, %d succeeded, %d failed\n",
			result.Summary.TotalKeys,
			result.Summary.TotalRedemptionAttempts,
			result.Summary.TotalSucceeded,
			result.Summary.TotalFailed,
		)
	},
}
