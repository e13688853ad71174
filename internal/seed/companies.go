package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/market-forecast/internal/models"
	"go.uber.org/zap"
)

// Store persists seeded stocks and enables them for tracking
type Store interface {
	SaveStock(ctx context.Context, s *models.Stock) error
	CreateMonitoredStock(ctx context.Context, m *models.MonitoredStock) error
}

var requiredColumns = []string{"symbol", "shortname", "exchange", "sector", "industry", "currentprice"}

// ParseCompanies reads a companies CSV with at least the columns
// Symbol, Shortname, Exchange, Sector, Industry and Currentprice in any order.
// Rows with an empty symbol are skipped.
func ParseCompanies(r io.Reader) ([]*models.Stock, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var stocks []*models.Stock
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		field := func(name string) string {
			i := cols[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		symbol := strings.ToUpper(field("symbol"))
		if symbol == "" {
			continue
		}

		var price float64
		if v := field("currentprice"); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("invalid price %q for %s on line %d: %w", v, symbol, line, err)
			}
			price = d.InexactFloat64()
		}

		stocks = append(stocks, &models.Stock{
			Symbol:       symbol,
			Name:         field("shortname"),
			Exchange:     field("exchange"),
			Sector:       field("sector"),
			Industry:     field("industry"),
			CurrentPrice: price,
		})
	}
	return stocks, nil
}

// Load saves each stock and enables it in the watchlist. A failing stock does not stop the rest.
func Load(ctx context.Context, store Store, stocks []*models.Stock, logger *zap.Logger) models.BatchResult {
	var result models.BatchResult
	for _, s := range stocks {
		if err := store.SaveStock(ctx, s); err != nil {
			logger.Warn("Failed to save stock", zap.String("symbol", s.Symbol), zap.Error(err))
			result.Fail(s.Symbol, err)
			continue
		}
		if err := store.CreateMonitoredStock(ctx, &models.MonitoredStock{Symbol: s.Symbol, Enabled: true}); err != nil {
			logger.Warn("Failed to enable stock", zap.String("symbol", s.Symbol), zap.Error(err))
			result.Fail(s.Symbol, err)
			continue
		}
		result.Succeed(s.Symbol)
	}
	return result
}
