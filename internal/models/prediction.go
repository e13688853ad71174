package models

import "time"

// Recommendation is the action derived from a prediction and its moving average
type Recommendation string

const (
	RecommendationBuy  Recommendation = "BUY"
	RecommendationSell Recommendation = "SELL"
)

// Recommend returns BUY when predicted is at or above the moving average, SELL otherwise
func Recommend(predicted, movingAverage float64) Recommendation {
	if predicted >= movingAverage {
		return RecommendationBuy
	}
	return RecommendationSell
}

// PredictionRecord is one next-close forecast for a symbol
type PredictionRecord struct {
	ID              int            `json:"id"`
	Symbol          string         `json:"symbol"`
	WindowSize      int            `json:"window_size"`
	WindowStart     time.Time      `json:"window_start_date"`
	WindowEnd       time.Time      `json:"window_end_date"`
	PredictedScaled float64        `json:"predicted_scaled"`
	PredictedReal   float64        `json:"predicted_real"`
	LastActualClose float64        `json:"last_actual_close"`
	MovingAverage   float64        `json:"moving_average"`
	Recommendation  Recommendation `json:"recommendation"`
	FeatureCount    int            `json:"feature_count"`
	CreatedAt       time.Time      `json:"created_at"`
}

// TargetDate is the day the prediction is for: the day after the window ends
func (p *PredictionRecord) TargetDate() time.Time {
	return p.WindowEnd.AddDate(0, 0, 1)
}
