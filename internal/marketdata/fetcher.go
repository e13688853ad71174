package marketdata

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/models"
)

// Fetcher retrieves daily OHLCV rows for one symbol in [start, end).
// A symbol with no data in the range returns no rows and no error.
type Fetcher interface {
	FetchSymbol(ctx context.Context, symbol string, start, end time.Time) ([]models.RawRow, error)
	Name() string
}

// Fetch retrieves rows for every symbol. Symbols that fail are left out;
// an error is returned only when every symbol failed.
func Fetch(ctx context.Context, f Fetcher, symbols []string, start, end time.Time) ([]models.RawRow, error) {
	var rows []models.RawRow
	var failures []error
	for _, symbol := range symbols {
		got, err := f.FetchSymbol(ctx, symbol, start, end)
		if err != nil {
			failures = append(failures, asUpstream(symbol, err))
			continue
		}
		rows = append(rows, got...)
	}
	if len(symbols) > 0 && len(failures) == len(symbols) {
		return nil, errors.Join(failures...)
	}
	return rows, nil
}

func asUpstream(symbol string, err error) error {
	var up *errs.UpstreamFetchError
	if errors.As(err, &up) {
		return err
	}
	return &errs.UpstreamFetchError{Symbol: symbol, Err: err}
}

// MockFetcher serves fixed rows for development and testing
type MockFetcher struct {
	mu     sync.Mutex
	Rows   map[string][]models.RawRow
	Errors map[string]error
	// Delay blocks each call until it elapses or the context ends
	Delay time.Duration
	Calls []string
}

// NewMockFetcher creates an empty MockFetcher
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Rows:   make(map[string][]models.RawRow),
		Errors: make(map[string]error),
	}
}

func (m *MockFetcher) Name() string { return "mock" }

// AddDaily adds one bar per calendar day from start with the given closes
func (m *MockFetcher) AddDaily(symbol string, start time.Time, closes ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range closes {
		m.Rows[symbol] = append(m.Rows[symbol], models.RawRow{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Fields: map[string]interface{}{
				models.FieldOpen:   c,
				models.FieldHigh:   c * 1.01,
				models.FieldLow:    c * 0.99,
				models.FieldClose:  c,
				models.FieldVolume: float64(1000000 + i),
			},
		})
	}
}

func (m *MockFetcher) FetchSymbol(ctx context.Context, symbol string, start, end time.Time) ([]models.RawRow, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, symbol)
	delay := m.Delay
	err := m.Errors[symbol]
	all := m.Rows[symbol]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &errs.UpstreamFetchError{Symbol: symbol, Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, &errs.UpstreamFetchError{Symbol: symbol, Err: err}
	}

	var out []models.RawRow
	for _, r := range all {
		d, ok := r.Date.(time.Time)
		if ok && (d.Before(start) || !d.Before(end)) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// CallCount returns how many fetches were made
func (m *MockFetcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
