package marketdata

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/market-forecast/internal/models"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Normalize converts raw rows into price points sorted by date ascending.
// Unparseable numeric values become 0 and volume is truncated to an integer.
// A row whose date cannot be parsed fails the whole batch.
// When a date repeats, the later row wins.
func Normalize(rows []models.RawRow) ([]*models.PricePoint, error) {
	byDate := make(map[time.Time]*models.PricePoint, len(rows))
	for _, r := range rows {
		d, err := parseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date for %s: %w", r.Symbol, err)
		}
		byDate[d] = &models.PricePoint{
			Symbol: r.Symbol,
			Date:   d,
			Open:   toFloat(r.Fields[models.FieldOpen]),
			High:   toFloat(r.Fields[models.FieldHigh]),
			Low:    toFloat(r.Fields[models.FieldLow]),
			Close:  toFloat(r.Fields[models.FieldClose]),
			Volume: int64(toFloat(r.Fields[models.FieldVolume])),
		}
	}

	out := make([]*models.PricePoint, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// GroupBySymbol splits rows per symbol preserving their order
func GroupBySymbol(rows []models.RawRow) map[string][]models.RawRow {
	out := make(map[string][]models.RawRow)
	for _, r := range rows {
		out[r.Symbol] = append(out[r.Symbol], r)
	}
	return out
}

func toFloat(v interface{}) float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return 0
		}
		f = d.InexactFloat64()
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(n), ",", ""))
		if err != nil {
			return 0
		}
		f = d.InexactFloat64()
	case decimal.Decimal:
		f = n.InexactFloat64()
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseDate(v interface{}) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return time.Time{}, fmt.Errorf("zero time")
		}
		return models.TruncateDate(d), nil
	case int64:
		return models.TruncateDate(time.Unix(d, 0).UTC()), nil
	case float64:
		return models.TruncateDate(time.Unix(int64(d), 0).UTC()), nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return models.TruncateDate(t), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", d)
	default:
		return time.Time{}, fmt.Errorf("unsupported date type %T", v)
	}
}
