// Package fetcher implements the market-data port: providers that resolve a
// symbol to a current price/volume quote.
package fetcher

import (
	"context"

	"github.com/shopspring/decimal"
)

// Quote is one provider observation for a symbol.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
	Volume decimal.Decimal
	Source string
}

// MarketDataFetcher retrieves the current quote for a symbol.
type MarketDataFetcher interface {
	Fetch(ctx context.Context, symbol string) (Quote, error)
}
