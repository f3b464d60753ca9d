package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent samples for one or all configured symbols.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	symbols := a.Config.Monitor.Symbols
	if opts.Symbol != "" {
		symbols = []string{opts.Symbol}
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tTime (UTC)\tPrice\tVolume")

	printed := 0
	for _, symbol := range symbols {
		history, err := store.LoadHistory(ctx, symbol)
		if err != nil {
			return err
		}
		history.Sort()

		start := 0
		if len(history) > opts.Limit {
			start = len(history) - opts.Limit
		}
		for _, sample := range history[start:] {
			fmt.Fprintf(
				writer,
				"%s\t%s\t%.2f\t%.2f\n",
				symbol,
				sample.Time().Format(time.RFC3339),
				sample.Price,
				sample.Volume,
			)
			printed++
		}
	}

	if printed == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
		return nil
	}

	writer.Flush()
	return nil
}
