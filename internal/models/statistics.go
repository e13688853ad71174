package models

import (
	"fmt"
	"time"
)

// Default moving average windows
const (
	WindowSMA50  = 50
	WindowSMA200 = 200
)

// StatisticsRecord is the moving average of the most recent WindowSize closes
type StatisticsRecord struct {
	Symbol        string    `json:"symbol"`
	WindowSize    int       `json:"window_size"`
	WindowStart   time.Time `json:"window_start_date"`
	WindowEnd     time.Time `json:"window_end_date"`
	MovingAverage float64   `json:"moving_average"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Label returns the indicator style name of the window, e.g. SMA_200
func (s *StatisticsRecord) Label() string {
	return fmt.Sprintf("SMA_%d", s.WindowSize)
}
