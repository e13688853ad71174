package database

import (
	"fmt"

	"github.com/trogers1052/market-forecast/internal/models"
)

// SeriesTables names the tables that back one series
type SeriesTables struct {
	Prices      string
	Statistics  string
	Predictions string
}

var seriesTables = map[models.Series]SeriesTables{
	models.SeriesIndex: {
		Prices:      "index_prices",
		Statistics:  "index_statistics",
		Predictions: "index_predictions",
	},
	models.SeriesStock: {
		Prices:      "stock_prices",
		Statistics:  "stock_statistics",
		Predictions: "stock_predictions",
	},
}

// TablesFor returns the tables of series
func TablesFor(series models.Series) (SeriesTables, error) {
	t, ok := seriesTables[series]
	if !ok {
		return SeriesTables{}, fmt.Errorf("no tables for series %q", series)
	}
	return t, nil
}
