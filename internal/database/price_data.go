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

// LastDate returns the most recent stored date of the series.
// ok is false when the series has no rows.
func (db *DB) LastDate(ctx context.Context, series models.Series) (time.Time, bool, error) {
	t, err := TablesFor(series)
	if err != nil {
		return time.Time{}, false, err
	}

	var last sql.NullTime
	query := fmt.Sprintf(`SELECT MAX(date) FROM %s`, t.Prices)
	if err := db.conn.QueryRowContext(ctx, query).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get last date for %s: %w", series, err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	return models.TruncateDate(last.Time), true, nil
}

// LastSymbolDate returns the most recent stored date for one symbol
func (db *DB) LastSymbolDate(ctx context.Context, series models.Series, symbol string) (time.Time, bool, error) {
	t, err := TablesFor(series)
	if err != nil {
		return time.Time{}, false, err
	}

	var last sql.NullTime
	query := fmt.Sprintf(`SELECT MAX(date) FROM %s WHERE symbol = $1`, t.Prices)
	if err := db.conn.QueryRowContext(ctx, query, symbol).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get last date for %s: %w", symbol, err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	return models.TruncateDate(last.Time), true, nil
}

// AppendPrices inserts rows for one symbol in a single transaction.
// Rows that already exist for (symbol, date) are left untouched.
// Returns the number of rows actually inserted.
func (db *DB) AppendPrices(ctx context.Context, series models.Series, symbol string, rows []*models.PricePoint) (int, error) {
	t, err := TablesFor(series)
	if err != nil {
		return 0, err
	}
	if !hasValidCloses(rows) {
		return 0, fmt.Errorf("failed to append prices for %s: %w", symbol, errs.ErrNoValidData)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (symbol, date, open, high, low, close, volume, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, date) DO NOTHING
	`, t.Prices))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	inserted := 0
	for _, p := range rows {
		res, err := stmt.ExecContext(ctx,
			symbol, models.TruncateDate(p.Date),
			decimal.NewFromFloat(p.Open), decimal.NewFromFloat(p.High),
			decimal.NewFromFloat(p.Low), decimal.NewFromFloat(p.Close),
			p.Volume, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert price for %s on %s: %w", symbol, p.Date.Format("2006-01-02"), err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

func hasValidCloses(rows []*models.PricePoint) bool {
	if len(rows) == 0 {
		return false
	}
	var sum float64
	for _, p := range rows {
		sum += p.Close
	}
	return sum != 0
}

// RecentPrices returns up to limit rows for symbol, most recent first
func (db *DB) RecentPrices(ctx context.Context, series models.Series, symbol string, limit int) ([]*models.PricePoint, error) {
	t, err := TablesFor(series)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT symbol, date, open, high, low, close, volume
		FROM %s
		WHERE symbol = $1
		ORDER BY date DESC
		LIMIT $2
	`, t.Prices)
	rows, err := db.conn.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// PricesBetween returns rows for symbol dated within [start, end], oldest first.
// A zero start or end leaves that side open; limit <= 0 returns every row.
func (db *DB) PricesBetween(ctx context.Context, series models.Series, symbol string, start, end time.Time, limit int) ([]*models.PricePoint, error) {
	t, err := TablesFor(series)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT symbol, date, open, high, low, close, volume
		FROM %s
		WHERE symbol = $1
		  AND ($2::date IS NULL OR date >= $2::date)
		  AND ($3::date IS NULL OR date <= $3::date)
		ORDER BY date ASC
		LIMIT $4
	`, t.Prices)
	rows, err := db.conn.QueryContext(ctx, query, symbol, nullDate(start), nullDate(end), nullLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

func scanPrices(rows *sql.Rows) ([]*models.PricePoint, error) {
	var prices []*models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		var open, high, low, closePrice decimal.Decimal
		if err := rows.Scan(&p.Symbol, &p.Date, &open, &high, &low, &closePrice, &p.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		p.Date = models.TruncateDate(p.Date)
		p.Open = open.InexactFloat64()
		p.High = high.InexactFloat64()
		p.Low = low.InexactFloat64()
		p.Close = closePrice.InexactFloat64()
		prices = append(prices, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prices: %w", err)
	}
	return prices, nil
}

func nullDate(t time.Time) sql.NullTime {
	return sql.NullTime{Time: models.TruncateDate(t), Valid: !t.IsZero()}
}

// LIMIT NULL is LIMIT ALL
func nullLimit(limit int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
}

// CountPrices returns the number of stored rows for symbol
func (db *DB) CountPrices(ctx context.Context, series models.Series, symbol string) (int, error) {
	t, err := TablesFor(series)
	if err != nil {
		return 0, err
	}

	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE symbol = $1`, t.Prices)
	if err := db.conn.QueryRowContext(ctx, query, symbol).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return n, nil
}
