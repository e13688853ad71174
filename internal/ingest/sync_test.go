package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/marketdata"
	"github.com/trogers1052/market-forecast/internal/models"
	"go.uber.org/zap"
)

type memStore struct {
	mu      sync.Mutex
	rows    map[string]map[time.Time]*models.PricePoint
	appends int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]map[time.Time]*models.PricePoint)}
}

func (m *memStore) LastDate(_ context.Context, _ models.Series) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last time.Time
	for _, byDate := range m.rows {
		for d := range byDate {
			if d.After(last) {
				last = d
			}
		}
	}
	return last, !last.IsZero(), nil
}

func (m *memStore) AppendPrices(_ context.Context, _ models.Series, symbol string, rows []*models.PricePoint) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum float64
	for _, p := range rows {
		sum += p.Close
	}
	if len(rows) == 0 || sum == 0 {
		return 0, errs.ErrNoValidData
	}
	m.appends++
	if m.rows[symbol] == nil {
		m.rows[symbol] = make(map[time.Time]*models.PricePoint)
	}
	n := 0
	for _, p := range rows {
		if _, ok := m.rows[symbol][p.Date]; ok {
			continue
		}
		m.rows[symbol][p.Date] = p
		n++
	}
	return n, nil
}

func (m *memStore) count(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[symbol])
}

type staticSymbols []string

func (s staticSymbols) Symbols(context.Context, models.Series) ([]string, error) {
	return s, nil
}

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(100 + i%50)
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestSyncer(store Store, f marketdata.Fetcher, symbols []string, today time.Time) *Syncer {
	return NewSyncer(store, f, staticSymbols(symbols), Options{Concurrency: 4, FetchTimeout: time.Second}, zap.NewNop()).
		WithClock(fixedClock(today))
}

func TestCursor(t *testing.T) {
	ctx := context.Background()

	t.Run("empty series starts at epoch", func(t *testing.T) {
		s := newTestSyncer(newMemStore(), marketdata.NewMockFetcher(), nil, time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC))

		start, end, err := s.Cursor(ctx, models.SeriesIndex)
		require.NoError(t, err)
		assert.Equal(t, DefaultEpoch, start)
		assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("start is the day after the last stored date", func(t *testing.T) {
		store := newMemStore()
		_, err := store.AppendPrices(ctx, models.SeriesIndex, "^GSPC", []*models.PricePoint{
			{Symbol: "^GSPC", Date: time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC), Close: 5000},
		})
		require.NoError(t, err)

		s := newTestSyncer(store, marketdata.NewMockFetcher(), nil, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
		start, _, err := s.Cursor(ctx, models.SeriesIndex)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), start)
	})
}

func TestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("first sync stores the full history", func(t *testing.T) {
		store := newMemStore()
		f := marketdata.NewMockFetcher()
		f.AddDaily("AAPL", DefaultEpoch, seq(2000)...)
		today := DefaultEpoch.AddDate(0, 0, 2000)

		res, err := newTestSyncer(store, f, []string{"AAPL"}, today).Sync(ctx, models.SeriesStock)
		require.NoError(t, err)

		assert.True(t, res.Updated)
		assert.Equal(t, 2000, res.Rows)
		assert.Equal(t, DefaultEpoch, res.Start)
		assert.Equal(t, today, res.End)
		assert.Equal(t, 2000, store.count("AAPL"))

		last, ok, err := store.LastDate(ctx, models.SeriesStock)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, today.AddDate(0, 0, -1), last)
	})

	t.Run("start equal to today is a no-op", func(t *testing.T) {
		store := newMemStore()
		yesterday := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
		_, err := store.AppendPrices(ctx, models.SeriesStock, "AAPL", []*models.PricePoint{{Symbol: "AAPL", Date: yesterday, Close: 1}})
		require.NoError(t, err)
		f := marketdata.NewMockFetcher()

		res, err := newTestSyncer(store, f, []string{"AAPL"}, yesterday.AddDate(0, 0, 1)).Sync(ctx, models.SeriesStock)
		require.NoError(t, err)

		assert.False(t, res.Updated)
		assert.Zero(t, f.CallCount())
		assert.Equal(t, 1, store.appends)
	})

	t.Run("second sync on the same day writes nothing", func(t *testing.T) {
		store := newMemStore()
		f := marketdata.NewMockFetcher()
		f.AddDaily("AAPL", DefaultEpoch, seq(10)...)
		s := newTestSyncer(store, f, []string{"AAPL"}, DefaultEpoch.AddDate(0, 0, 10))

		_, err := s.Sync(ctx, models.SeriesStock)
		require.NoError(t, err)
		res, err := s.Sync(ctx, models.SeriesStock)
		require.NoError(t, err)

		assert.False(t, res.Updated)
		assert.Equal(t, 1, store.appends)
		assert.Equal(t, 10, store.count("AAPL"))
	})

	t.Run("failing symbols are collected without stopping others", func(t *testing.T) {
		store := newMemStore()
		f := marketdata.NewMockFetcher()
		f.AddDaily("AAPL", DefaultEpoch, seq(5)...)
		f.AddDaily("NVDA", DefaultEpoch, seq(5)...)
		f.AddDaily("ZERO", DefaultEpoch, 0, 0, 0)
		f.Errors["MSFT"] = errors.New("delisted")

		res, err := newTestSyncer(store, f, []string{"AAPL", "MSFT", "NVDA", "ZERO"}, DefaultEpoch.AddDate(0, 0, 5)).
			Sync(ctx, models.SeriesStock)
		require.NoError(t, err)

		assert.True(t, res.Updated)
		assert.Equal(t, []string{"AAPL", "NVDA"}, res.Result.OK)
		assert.Equal(t, []string{"MSFT", "ZERO"}, res.FailedSymbols())
		assert.True(t, res.Result.Partial())

		var up *errs.UpstreamFetchError
		assert.True(t, errors.As(res.Result.Failed[0].Err, &up))
		assert.ErrorIs(t, res.Result.Failed[1].Err, errs.ErrNoValidData)
	})

	t.Run("symbol without rows in range is not a failure", func(t *testing.T) {
		store := newMemStore()
		f := marketdata.NewMockFetcher()

		res, err := newTestSyncer(store, f, []string{"AAPL"}, DefaultEpoch.AddDate(0, 0, 2)).Sync(ctx, models.SeriesStock)
		require.NoError(t, err)
		assert.False(t, res.Updated)
		assert.Equal(t, []string{"AAPL"}, res.Result.OK)
		assert.Zero(t, store.appends)
	})

	t.Run("slow fetch times out for that symbol only", func(t *testing.T) {
		store := newMemStore()
		f := marketdata.NewMockFetcher()
		f.AddDaily("AAPL", DefaultEpoch, seq(3)...)
		f.Delay = 200 * time.Millisecond

		s := NewSyncer(store, f, staticSymbols{"AAPL"}, Options{FetchTimeout: 20 * time.Millisecond}, zap.NewNop()).
			WithClock(fixedClock(DefaultEpoch.AddDate(0, 0, 3)))
		res, err := s.Sync(ctx, models.SeriesStock)
		require.NoError(t, err)

		assert.True(t, res.Result.AllFailed())
		assert.ErrorIs(t, res.Result.Failed[0].Err, context.DeadlineExceeded)
	})

	t.Run("concurrent syncs of one series share a run", func(t *testing.T) {
		store := newMemStore()
		f := marketdata.NewMockFetcher()
		f.AddDaily("AAPL", DefaultEpoch, seq(3)...)
		f.Delay = 200 * time.Millisecond
		s := newTestSyncer(store, f, []string{"AAPL"}, DefaultEpoch.AddDate(0, 0, 3))

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Sync(ctx, models.SeriesStock)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, f.CallCount())
		assert.Equal(t, 3, store.count("AAPL"))
	})

	t.Run("caller that gives up does not cancel the shared run", func(t *testing.T) {
		store := newMemStore()
		f := marketdata.NewMockFetcher()
		f.AddDaily("AAPL", DefaultEpoch, seq(3)...)
		f.Delay = 200 * time.Millisecond
		s := newTestSyncer(store, f, []string{"AAPL"}, DefaultEpoch.AddDate(0, 0, 3))

		leaving, cancel := context.WithCancel(ctx)
		leftErr := make(chan error, 1)
		go func() {
			_, err := s.Sync(leaving, models.SeriesStock)
			leftErr <- err
		}()
		require.Eventually(t, func() bool { return f.CallCount() == 1 }, time.Second, 5*time.Millisecond)

		staying := make(chan *SyncResult, 1)
		go func() {
			res, err := s.Sync(ctx, models.SeriesStock)
			assert.NoError(t, err)
			staying <- res
		}()
		cancel()

		assert.ErrorIs(t, <-leftErr, context.Canceled)
		res := <-staying
		require.NotNil(t, res)
		assert.Empty(t, res.FailedSymbols())
		assert.Equal(t, 3, store.count("AAPL"))
		assert.Equal(t, 1, f.CallCount())
	})

	t.Run("run timeout bounds the shared run", func(t *testing.T) {
		store := newMemStore()
		f := marketdata.NewMockFetcher()
		f.AddDaily("AAPL", DefaultEpoch, seq(3)...)
		f.Delay = 200 * time.Millisecond

		s := NewSyncer(store, f, staticSymbols{"AAPL"}, Options{FetchTimeout: time.Second, RunTimeout: 20 * time.Millisecond}, zap.NewNop()).
			WithClock(fixedClock(DefaultEpoch.AddDate(0, 0, 3)))
		res, err := s.Sync(ctx, models.SeriesStock)
		require.NoError(t, err)

		assert.True(t, res.Result.AllFailed())
		assert.ErrorIs(t, res.Result.Failed[0].Err, context.DeadlineExceeded)
	})
}

func TestSyncKeepsOnlyRequestedSymbolRows(t *testing.T) {
	ctx := context.Background()
	f := &rangeBlindFetcher{rows: []models.RawRow{
		{Symbol: "AAPL", Date: "2024-01-04", Fields: map[string]interface{}{models.FieldClose: 10.0}},
		{Symbol: "MSFT", Date: "2024-01-04", Fields: map[string]interface{}{models.FieldClose: 20.0}},
	}}
	store := newMemStore()

	res, err := newTestSyncer(store, f, []string{"AAPL"}, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)).Sync(ctx, models.SeriesStock)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, 1, store.count("AAPL"))
	assert.Zero(t, store.count("MSFT"))
}

// rangeBlindFetcher ignores the requested range
type rangeBlindFetcher struct {
	rows []models.RawRow
}

func (r *rangeBlindFetcher) Name() string { return "blind" }

func (r *rangeBlindFetcher) FetchSymbol(context.Context, string, time.Time, time.Time) ([]models.RawRow, error) {
	return r.rows, nil
}

func TestSyncDropsRowsOutsideCursor(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	last := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	_, err := store.AppendPrices(ctx, models.SeriesStock, "AAPL", []*models.PricePoint{{Symbol: "AAPL", Date: last, Close: 10}})
	require.NoError(t, err)

	f := &rangeBlindFetcher{}
	for _, d := range []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-06"} {
		f.rows = append(f.rows, models.RawRow{
			Symbol: "AAPL",
			Date:   d,
			Fields: map[string]interface{}{models.FieldClose: 999.0},
		})
	}

	res, err := newTestSyncer(store, f, []string{"AAPL"}, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)).Sync(ctx, models.SeriesStock)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Rows, "only 01-04 and 01-05 are inside [cursor, today)")
	assert.Equal(t, 10.0, store.rows["AAPL"][last].Close, "stored row untouched")
}
