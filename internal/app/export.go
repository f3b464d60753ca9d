package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"crypto-anomaly-monitor/internal/market"
)

// Export renders a symbol's historical samples as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Symbol == "" {
		return errors.New("--symbol is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	history, err := store.LoadHistory(ctx, opts.Symbol)
	if err != nil {
		return err
	}
	history.Sort()
	history = filterRange(history, opts.From, opts.To)
	if len(history) == 0 {
		a.Logger.Info().Str("symbol", opts.Symbol).Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleHistory(history, opts.MaxPoints)
	a.Logger.Info().
		Str("symbol", opts.Symbol).
		Int("total", len(history)).
		Int("exported", len(downsampled)).
		Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, opts.Symbol, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, opts.Symbol, downsampled); err != nil {
			return err
		}
	}
	return nil
}

func filterRange(history market.History, from, to *time.Time) market.History {
	out := make(market.History, 0, len(history))
	for _, sample := range history {
		if from != nil && sample.Timestamp < from.Unix() {
			continue
		}
		if to != nil && sample.Timestamp > to.Unix() {
			continue
		}
		out = append(out, sample)
	}
	return out
}

func downsampleHistory(history market.History, max int) market.History {
	if max <= 0 || len(history) <= max {
		return history
	}

	result := make(market.History, 0, max)
	step := float64(len(history)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(history) {
			idx = len(history) - 1
		}
		result = append(result, history[idx])
	}
	return result
}

func writeHistoryCSV(path, symbol string, history market.History) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"symbol", "ts", "price", "volume"}); err != nil {
		return err
	}
	for _, sample := range history {
		record := []string{
			symbol,
			sample.Time().Format(time.RFC3339),
			strconv.FormatFloat(sample.Price, 'f', -1, 64),
			strconv.FormatFloat(sample.Volume, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeHistoryPNG(path, symbol string, history market.History) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(history))
	prices := make([]float64, len(history))
	volumes := make([]float64, len(history))
	for i, sample := range history {
		x[i] = sample.Time()
		prices[i] = sample.Price
		volumes[i] = sample.Volume
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (" + symbol + ")",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Volume",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: prices,
			},
			chart.TimeSeries{
				Name:    "Volume",
				XValues: x,
				YValues: volumes,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
