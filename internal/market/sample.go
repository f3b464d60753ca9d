package market

import (
	"sort"
	"time"
)

// Sample is one observed price/volume point for a symbol. Immutable once
// recorded.
type Sample struct {
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"`
}

// Time returns the sample timestamp as a time.Time in UTC.
func (s Sample) Time() time.Time {
	return time.Unix(s.Timestamp, 0).UTC()
}

// History is an ordered-by-timestamp sequence of samples for one symbol.
type History []Sample

// Sort orders the history by ascending timestamp in place.
func (h History) Sort() {
	sort.Slice(h, func(i, j int) bool { return h[i].Timestamp < h[j].Timestamp })
}

// Latest returns the most recent sample, or false when the history is empty.
// The history is not assumed sorted.
func (h History) Latest() (Sample, bool) {
	if len(h) == 0 {
		return Sample{}, false
	}
	latest := h[0]
	for _, s := range h[1:] {
		if s.Timestamp > latest.Timestamp {
			latest = s
		}
	}
	return latest, true
}

// Since returns the samples whose timestamp is >= cutoff.
func (h History) Since(cutoff int64) History {
	out := make(History, 0, len(h))
	for _, s := range h {
		if s.Timestamp >= cutoff {
			out = append(out, s)
		}
	}
	return out
}

// Window returns the samples inside the trailing window ending at the latest
// sample's timestamp.
func (h History) Window(window time.Duration) History {
	latest, ok := h.Latest()
	if !ok {
		return nil
	}
	return h.Since(latest.Timestamp - int64(window.Seconds()))
}

// Prices extracts the price channel.
func (h History) Prices() []float64 {
	out := make([]float64, len(h))
	for i, s := range h {
		out[i] = s.Price
	}
	return out
}

// Volumes extracts the volume channel.
func (h History) Volumes() []float64 {
	out := make([]float64, len(h))
	for i, s := range h {
		out[i] = s.Volume
	}
	return out
}
