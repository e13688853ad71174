package ingest

import (
	"context"
	"fmt"

	"github.com/trogers1052/market-forecast/internal/models"
)

// SymbolSource lists the symbols tracked by a series
type SymbolSource interface {
	Symbols(ctx context.Context, series models.Series) ([]string, error)
}

// MonitoredLister lists enabled watchlist symbols
type MonitoredLister interface {
	GetMonitoredSymbols(ctx context.Context) ([]string, error)
}

// TrackedSymbols resolves the index series from a fixed list and the
// stock series from the watchlist
type TrackedSymbols struct {
	Index     []string
	Monitored MonitoredLister
}

func (t *TrackedSymbols) Symbols(ctx context.Context, series models.Series) ([]string, error) {
	switch series {
	case models.SeriesIndex:
		return t.Index, nil
	case models.SeriesStock:
		symbols, err := t.Monitored.GetMonitoredSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list monitored symbols: %w", err)
		}
		return symbols, nil
	default:
		return nil, fmt.Errorf("unknown series: %q", series)
	}
}
