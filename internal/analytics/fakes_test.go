package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/models"
)

// memStore keeps prices oldest first per symbol
type memStore struct {
	prices      map[string][]*models.PricePoint
	stats       map[string]*models.StatisticsRecord
	predictions map[string]*models.PredictionRecord
	priceErr    error
}

func newMemStore() *memStore {
	return &memStore{
		prices:      make(map[string][]*models.PricePoint),
		stats:       make(map[string]*models.StatisticsRecord),
		predictions: make(map[string]*models.PredictionRecord),
	}
}

func (m *memStore) addCloses(symbol string, closes ...float64) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, len(m.prices[symbol]))
	for i, c := range closes {
		m.prices[symbol] = append(m.prices[symbol], &models.PricePoint{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Close:  c,
			Volume: 1000,
		})
	}
}

func (m *memStore) RecentPrices(_ context.Context, _ models.Series, symbol string, limit int) ([]*models.PricePoint, error) {
	if m.priceErr != nil {
		return nil, m.priceErr
	}
	all := m.prices[symbol]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return models.Reverse(all), nil
}

func (m *memStore) UpsertStatistic(_ context.Context, _ models.Series, s *models.StatisticsRecord) error {
	m.stats[fmt.Sprintf("%s/%d", s.Symbol, s.WindowSize)] = s
	return nil
}

func (m *memStore) LatestPrediction(_ context.Context, _ models.Series, symbol string) (*models.PredictionRecord, error) {
	p, ok := m.predictions[symbol]
	if !ok {
		return nil, fmt.Errorf("prediction for %s: %w", symbol, errs.ErrNotFound)
	}
	return p, nil
}

// predict stores a prediction whose window ends on the last stored close
func (m *memStore) predict(symbol string, value float64) *models.PredictionRecord {
	p := &models.PredictionRecord{Symbol: symbol, PredictedReal: value}
	if rows := m.prices[symbol]; len(rows) > 0 {
		p.WindowEnd = rows[len(rows)-1].Date
	}
	m.predictions[symbol] = p
	return p
}

func ramp(from, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(from + i)
	}
	return out
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
