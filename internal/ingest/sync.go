package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/trogers1052/market-forecast/internal/marketdata"
	"github.com/trogers1052/market-forecast/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultEpoch is where an empty series starts fetching from
var DefaultEpoch = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

// Store is the part of the series store the syncer writes through
type Store interface {
	LastDate(ctx context.Context, series models.Series) (time.Time, bool, error)
	AppendPrices(ctx context.Context, series models.Series, symbol string, rows []*models.PricePoint) (int, error)
}

// Options tunes a Syncer
type Options struct {
	Epoch        time.Time
	Concurrency  int
	FetchTimeout time.Duration
	// RunTimeout bounds a whole sync independently of its callers
	RunTimeout time.Duration
}

// SyncResult describes one sync of a series
type SyncResult struct {
	Series  models.Series      `json:"series"`
	Start   time.Time          `json:"start"`
	End     time.Time          `json:"end"`
	Updated bool               `json:"updated"`
	Rows    int                `json:"rows"`
	Result  models.BatchResult `json:"result"`
}

// FailedSymbols lists the symbols that did not sync
func (r *SyncResult) FailedSymbols() []string {
	return r.Result.FailedSymbols()
}

// Syncer brings a series up to date with the upstream source
type Syncer struct {
	store   Store
	fetcher marketdata.Fetcher
	symbols SymbolSource
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
	group   singleflight.Group
}

// NewSyncer creates a Syncer
func NewSyncer(store Store, fetcher marketdata.Fetcher, symbols SymbolSource, opts Options, logger *zap.Logger) *Syncer {
	if opts.Epoch.IsZero() {
		opts.Epoch = DefaultEpoch
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 2 * time.Hour
	}
	return &Syncer{
		store:   store,
		fetcher: fetcher,
		symbols: symbols,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the clock used to decide today's date
func (s *Syncer) WithClock(now func() time.Time) *Syncer {
	s.now = now
	return s
}

// Cursor returns the [start, end) range the next sync of series would fetch
func (s *Syncer) Cursor(ctx context.Context, series models.Series) (time.Time, time.Time, error) {
	end := models.TruncateDate(s.now().UTC())

	last, ok, err := s.store.LastDate(ctx, series)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		return s.opts.Epoch, end, nil
	}
	return last.AddDate(0, 0, 1), end, nil
}

// Sync fetches everything after the stored cursor up to yesterday.
// Concurrent calls for the same series share a single run. The run is
// detached from ctx and bounded by RunTimeout, so a caller that gives up
// returns ctx.Err() while the shared run carries on for the others.
func (s *Syncer) Sync(ctx context.Context, series models.Series) (*SyncResult, error) {
	ch := s.group.DoChan(series.String(), func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RunTimeout)
		defer cancel()
		return s.sync(runCtx, series)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			s.logger.Debug("Joined in-flight sync", zap.String("series", series.String()))
		}
		return r.Val.(*SyncResult), nil
	}
}

func (s *Syncer) sync(ctx context.Context, series models.Series) (*SyncResult, error) {
	start, end, err := s.Cursor(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("failed to read cursor for %s: %w", series, err)
	}

	res := &SyncResult{Series: series, Start: start, End: end}
	if !start.Before(end) {
		s.logger.Info("Series already up to date",
			zap.String("series", series.String()),
			zap.Time("start", start),
		)
		return res, nil
	}

	symbols, err := s.symbols.Symbols(ctx, series)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Syncing series",
		zap.String("series", series.String()),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("symbols", len(symbols)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	outcomes := make([]error, len(symbols))
	inserted := make([]int, len(symbols))

	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			inserted[i], outcomes[i] = s.syncSymbol(gctx, series, symbol, start, end)
			return nil
		})
	}
	g.Wait()

	for i, symbol := range symbols {
		if outcomes[i] != nil {
			s.logger.Warn("Symbol sync failed",
				zap.String("series", series.String()),
				zap.String("symbol", symbol),
				zap.Error(outcomes[i]),
			)
			res.Result.Fail(symbol, outcomes[i])
			continue
		}
		res.Result.Succeed(symbol)
		res.Rows += inserted[i]
	}
	res.Updated = res.Rows > 0

	s.logger.Info("Series sync finished",
		zap.String("series", series.String()),
		zap.Int("rows", res.Rows),
		zap.Int("ok", len(res.Result.OK)),
		zap.Int("failed", len(res.Result.Failed)),
	)
	return res, nil
}

func (s *Syncer) syncSymbol(ctx context.Context, series models.Series, symbol string, start, end time.Time) (int, error) {
	fctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	raw, err := marketdata.Fetch(fctx, s.fetcher, []string{symbol}, start, end)
	if err != nil {
		return 0, err
	}

	points, err := marketdata.Normalize(marketdata.GroupBySymbol(raw)[symbol])
	if err != nil {
		return 0, err
	}

	// keep only dates inside [start, end) so stored rows are never touched
	fresh := points[:0]
	for _, p := range points {
		if !p.Date.Before(start) && p.Date.Before(end) {
			p.Symbol = symbol
			fresh = append(fresh, p)
		}
	}

	if len(fresh) == 0 {
		// no trading days in range
		return 0, nil
	}
	return s.store.AppendPrices(ctx, series, symbol, fresh)
}
