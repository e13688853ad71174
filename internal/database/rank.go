package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/market-forecast/internal/models"
)

// ReplaceRank atomically replaces the stored ranking with records.
// Slice order is the ranking; Position is assigned from it.
func (db *DB) ReplaceRank(ctx context.Context, records []models.RankRecord) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stock_rank`); err != nil {
		return fmt.Errorf("failed to clear ranking: %w", err)
	}

	now := time.Now()
	for i := range records {
		r := &records[i]
		r.Position = i + 1
		r.RankedAt = now
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stock_rank (
				position, symbol, sector, industry, current_price,
				predicted_real, moving_average, potential, ranked_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			r.Position, r.Symbol, r.Sector, r.Industry, decimal.NewFromFloat(r.CurrentPrice),
			decimal.NewFromFloat(r.PredictedReal), decimal.NewFromFloat(r.MovingAverage),
			r.Potential, r.RankedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rank for %s: %w", r.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRank returns the stored ranking, best potential first
func (db *DB) GetRank(ctx context.Context) ([]models.RankRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT position, symbol, COALESCE(sector, ''), COALESCE(industry, ''), current_price,
		       predicted_real, moving_average, potential, ranked_at
		FROM stock_rank
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get ranking: %w", err)
	}
	defer rows.Close()

	var out []models.RankRecord
	for rows.Next() {
		var r models.RankRecord
		var price, predicted, ma decimal.Decimal
		if err := rows.Scan(
			&r.Position, &r.Symbol, &r.Sector, &r.Industry, &price,
			&predicted, &ma, &r.Potential, &r.RankedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rank: %w", err)
		}
		r.CurrentPrice = price.InexactFloat64()
		r.PredictedReal = predicted.InexactFloat64()
		r.MovingAverage = ma.InexactFloat64()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ranking: %w", err)
	}
	return out, nil
}
