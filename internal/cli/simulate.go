package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateSymbol string
	simulatePrice  float64
	simulateVolume float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-cycle",
	Short: "Run one monitoring cycle against a fixed quote",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateSymbol == "" {
			return errors.New("--symbol is required")
		}
		if simulatePrice <= 0 {
			return errors.New("--price must be greater than 0")
		}

		price := decimal.NewFromFloat(simulatePrice)
		volume := decimal.NewFromFloat(simulateVolume)
		return getApp().SimulateCycle(cmd.Context(), simulateSymbol, price, volume)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "", "Symbol to simulate")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Simulated price")
	simulateCmd.Flags().Float64Var(&simulateVolume, "volume", 0, "Simulated 24h volume")
}
