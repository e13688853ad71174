package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/models"
)

// UpsertStatistic stores the current moving average for (symbol, window_size)
func (db *DB) UpsertStatistic(ctx context.Context, series models.Series, s *models.StatisticsRecord) error {
	t, err := TablesFor(series)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, window_size, window_start_date, window_end_date, moving_average, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, window_size) DO UPDATE SET
			window_start_date = EXCLUDED.window_start_date,
			window_end_date = EXCLUDED.window_end_date,
			moving_average = EXCLUDED.moving_average,
			updated_at = EXCLUDED.updated_at
	`, t.Statistics)

	s.UpdatedAt = time.Now()
	_, err = db.conn.ExecContext(ctx, query,
		s.Symbol, s.WindowSize, s.WindowStart, s.WindowEnd,
		decimal.NewFromFloat(s.MovingAverage), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert statistic: %w", err)
	}
	return nil
}

// GetStatistic retrieves the stored moving average for (symbol, window)
func (db *DB) GetStatistic(ctx context.Context, series models.Series, symbol string, window int) (*models.StatisticsRecord, error) {
	t, err := TablesFor(series)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT symbol, window_size, window_start_date, window_end_date, moving_average, updated_at
		FROM %s
		WHERE symbol = $1 AND window_size = $2
	`, t.Statistics)

	var s models.StatisticsRecord
	var ma decimal.Decimal
	err = db.conn.QueryRowContext(ctx, query, symbol, window).Scan(
		&s.Symbol, &s.WindowSize, &s.WindowStart, &s.WindowEnd, &ma, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("statistic %s/%d: %w", symbol, window, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statistic: %w", err)
	}

	s.MovingAverage = ma.InexactFloat64()
	s.WindowStart = models.TruncateDate(s.WindowStart)
	s.WindowEnd = models.TruncateDate(s.WindowEnd)
	return &s, nil
}

// GetStatistics returns every stored window for symbol, smallest window first
func (db *DB) GetStatistics(ctx context.Context, series models.Series, symbol string) ([]*models.StatisticsRecord, error) {
	t, err := TablesFor(series)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT symbol, window_size, window_start_date, window_end_date, moving_average, updated_at
		FROM %s
		WHERE symbol = $1
		ORDER BY window_size ASC
	`, t.Statistics)
	rows, err := db.conn.QueryContext(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	defer rows.Close()

	var out []*models.StatisticsRecord
	for rows.Next() {
		var s models.StatisticsRecord
		var ma decimal.Decimal
		if err := rows.Scan(&s.Symbol, &s.WindowSize, &s.WindowStart, &s.WindowEnd, &ma, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan statistic: %w", err)
		}
		s.MovingAverage = ma.InexactFloat64()
		s.WindowStart = models.TruncateDate(s.WindowStart)
		s.WindowEnd = models.TruncateDate(s.WindowEnd)
		out = append(out, &s)
	}
	return out, rows.Err()
}
