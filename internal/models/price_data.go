package models

import "time"

// PricePoint is one daily OHLCV bar for a symbol. Date is a calendar date at UTC midnight.
type PricePoint struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// RawRow is an unnormalized row as delivered by a market data source.
// Values may be strings, numbers or nil.
type RawRow struct {
	Symbol string                 `json:"symbol"`
	Date   interface{}            `json:"date"`
	Fields map[string]interface{} `json:"fields"`
}

// Raw field names understood by the normalizer
const (
	FieldOpen   = "open"
	FieldHigh   = "high"
	FieldLow    = "low"
	FieldClose  = "close"
	FieldVolume = "volume"
)

// Closes returns the close column of points in their existing order
func Closes(points []*PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Close
	}
	return out
}

// Reverse returns a copy of points in the opposite order
func Reverse(points []*PricePoint) []*PricePoint {
	out := make([]*PricePoint, len(points))
	for i, p := range points {
		out[len(points)-1-i] = p
	}
	return out
}

// TruncateDate drops the clock part of t and returns the UTC calendar date
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
