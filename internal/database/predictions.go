package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/models"
)

// CreatePrediction inserts a prediction and fills in its ID and CreatedAt
func (db *DB) CreatePrediction(ctx context.Context, series models.Series, p *models.PredictionRecord) error {
	t, err := TablesFor(series)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			symbol, window_size, window_start_date, window_end_date,
			predicted_scaled, predicted_real, last_actual_close, moving_average,
			recommendation, feature_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, t.Predictions)

	err = db.conn.QueryRowContext(ctx, query,
		p.Symbol, p.WindowSize, p.WindowStart, p.WindowEnd,
		p.PredictedScaled, decimal.NewFromFloat(p.PredictedReal),
		decimal.NewFromFloat(p.LastActualClose), decimal.NewFromFloat(p.MovingAverage),
		string(p.Recommendation), p.FeatureCount,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}
	return nil
}

// LatestPrediction returns the most recently created prediction for symbol
func (db *DB) LatestPrediction(ctx context.Context, series models.Series, symbol string) (*models.PredictionRecord, error) {
	t, err := TablesFor(series)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, symbol, window_size, window_start_date, window_end_date,
		       predicted_scaled, predicted_real, last_actual_close, moving_average,
		       recommendation, feature_count, created_at
		FROM %s
		WHERE symbol = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, t.Predictions)

	var p models.PredictionRecord
	var predicted, lastClose, ma decimal.Decimal
	var rec string
	err = db.conn.QueryRowContext(ctx, query, symbol).Scan(
		&p.ID, &p.Symbol, &p.WindowSize, &p.WindowStart, &p.WindowEnd,
		&p.PredictedScaled, &predicted, &lastClose, &ma,
		&rec, &p.FeatureCount, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("prediction for %s: %w", symbol, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	p.PredictedReal = predicted.InexactFloat64()
	p.LastActualClose = lastClose.InexactFloat64()
	p.MovingAverage = ma.InexactFloat64()
	p.Recommendation = models.Recommendation(rec)
	p.WindowStart = models.TruncateDate(p.WindowStart)
	p.WindowEnd = models.TruncateDate(p.WindowEnd)
	return &p, nil
}
