package cli

import (
	"github.com/spf13/cobra"

	"crypto-anomaly-monitor/internal/app"
)

var (
	showSymbol string
	showLimit  int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print recent price samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{
			Symbol: showSymbol,
			Limit:  showLimit,
		})
	},
}

func init() {
	showCmd.Flags().StringVar(&showSymbol, "symbol", "", "Restrict output to one symbol (defaults to all configured)")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Samples to show per symbol")
}
