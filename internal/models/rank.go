package models

import "time"

// RankRecord is one row of the potential ranking
type RankRecord struct {
	Position      int       `json:"position"`
	Symbol        string    `json:"symbol"`
	Sector        string    `json:"sector,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	CurrentPrice  float64   `json:"current_price"`
	PredictedReal float64   `json:"predicted_real"`
	MovingAverage float64   `json:"moving_average"`
	Potential     float64   `json:"potential"`
	RankedAt      time.Time `json:"ranked_at"`
}

// Potential is the percentage distance of predicted above movingAverage
func Potential(predicted, movingAverage float64) float64 {
	return (predicted - movingAverage) / movingAverage * 100
}
