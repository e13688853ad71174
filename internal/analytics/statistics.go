package analytics

import (
	"context"
	"fmt"

	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/models"
	"go.uber.org/zap"
)

// PriceReader reads stored price history
type PriceReader interface {
	RecentPrices(ctx context.Context, series models.Series, symbol string, limit int) ([]*models.PricePoint, error)
}

// StatisticsStore persists computed moving averages
type StatisticsStore interface {
	PriceReader
	UpsertStatistic(ctx context.Context, series models.Series, s *models.StatisticsRecord) error
}

// SMA returns the mean of the last period values.
// ok is false when there are fewer than period values.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), true
}

// Statistics computes rolling statistics over stored series
type Statistics struct {
	store  StatisticsStore
	logger *zap.Logger
}

// NewStatistics creates a Statistics engine
func NewStatistics(store StatisticsStore, logger *zap.Logger) *Statistics {
	return &Statistics{store: store, logger: logger}
}

// MovingAverage returns the mean close of the most recent window rows of symbol.
// ok is false when fewer than window rows are stored.
func (s *Statistics) MovingAverage(ctx context.Context, series models.Series, symbol string, window int) (float64, bool, error) {
	rec, ok, err := s.Compute(ctx, series, symbol, window)
	if err != nil || !ok {
		return 0, ok, err
	}
	return rec.MovingAverage, true, nil
}

// Compute builds the statistics record for one window without storing it
func (s *Statistics) Compute(ctx context.Context, series models.Series, symbol string, window int) (*models.StatisticsRecord, bool, error) {
	if window <= 0 {
		return nil, false, fmt.Errorf("invalid window size %d", window)
	}

	prices, err := s.store.RecentPrices(ctx, series, symbol, window)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load prices for %s: %w", symbol, err)
	}
	if len(prices) < window {
		return nil, false, nil
	}

	ma, _ := SMA(models.Closes(prices), window)
	return &models.StatisticsRecord{
		Symbol:        symbol,
		WindowSize:    window,
		WindowStart:   prices[len(prices)-1].Date,
		WindowEnd:     prices[0].Date,
		MovingAverage: ma,
	}, true, nil
}

// Refresh computes and stores every window that has enough data.
// Windows without enough data are skipped.
func (s *Statistics) Refresh(ctx context.Context, series models.Series, symbol string, windows ...int) ([]*models.StatisticsRecord, error) {
	var out []*models.StatisticsRecord
	for _, w := range windows {
		rec, ok, err := s.Compute(ctx, series, symbol, w)
		if err != nil {
			return out, err
		}
		if !ok {
			s.logger.Debug("Not enough history for moving average",
				zap.String("series", series.String()),
				zap.String("symbol", symbol),
				zap.Int("window", w),
			)
			continue
		}
		if err := s.store.UpsertStatistic(ctx, series, rec); err != nil {
			return out, fmt.Errorf("failed to store statistic for %s: %w", symbol, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// RefreshBatch refreshes every symbol. A symbol with no computable window fails
// with ErrInsufficientData.
func (s *Statistics) RefreshBatch(ctx context.Context, series models.Series, symbols []string, windows []int) models.BatchResult {
	var result models.BatchResult
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			result.Fail(symbol, ctx.Err())
			continue
		}
		recs, err := s.Refresh(ctx, series, symbol, windows...)
		switch {
		case err != nil:
			result.Fail(symbol, err)
		case len(recs) == 0:
			result.Fail(symbol, fmt.Errorf("no window of %v fits: %w", windows, errs.ErrInsufficientData))
		default:
			result.Succeed(symbol)
		}
	}
	return result
}
