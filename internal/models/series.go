package models

import "fmt"

// Series identifies one logical set of tracked symbols with its own tables
type Series string

const (
	SeriesIndex Series = "index"
	SeriesStock Series = "stock"
)

// AllSeries lists every known series in pipeline order
var AllSeries = []Series{SeriesIndex, SeriesStock}

// ParseSeries converts a user supplied name into a Series
func ParseSeries(s string) (Series, error) {
	switch Series(s) {
	case SeriesIndex, SeriesStock:
		return Series(s), nil
	default:
		return "", fmt.Errorf("unknown series: %q", s)
	}
}

func (s Series) String() string {
	return string(s)
}
