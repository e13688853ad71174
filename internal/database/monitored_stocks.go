package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/models"
)

// CreateMonitoredStock adds a stock to the tracked set of the stock series
func (db *DB) CreateMonitoredStock(ctx context.Context, m *models.MonitoredStock) error {
	query := `
		INSERT INTO monitored_stocks (symbol, enabled, priority, notes, added_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			priority = EXCLUDED.priority,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	if m.Priority == 0 {
		m.Priority = 1
	}

	_, err := db.conn.ExecContext(ctx, query, m.Symbol, m.Enabled, m.Priority, m.Notes, now, now)
	if err != nil {
		return fmt.Errorf("failed to create monitored stock: %w", err)
	}
	m.AddedAt = now
	m.UpdatedAt = now
	return nil
}

// GetMonitoredStockBySymbol retrieves a monitored stock by symbol
func (db *DB) GetMonitoredStockBySymbol(ctx context.Context, symbol string) (*models.MonitoredStock, error) {
	query := `
		SELECT symbol, enabled, priority, notes, added_at, updated_at
		FROM monitored_stocks
		WHERE symbol = $1
	`
	var m models.MonitoredStock
	var notes sql.NullString

	err := db.conn.QueryRowContext(ctx, query, symbol).Scan(
		&m.Symbol, &m.Enabled, &m.Priority, &notes, &m.AddedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("monitored stock %s: %w", symbol, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monitored stock: %w", err)
	}
	m.Notes = notes.String
	return &m, nil
}

// GetMonitoredSymbols returns the symbols of enabled monitored stocks
func (db *DB) GetMonitoredSymbols(ctx context.Context) ([]string, error) {
	query := `
		SELECT symbol
		FROM monitored_stocks
		WHERE enabled = true
		ORDER BY priority ASC, symbol ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get monitored symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// DisableMonitoredStock stops tracking a symbol without dropping its history
func (db *DB) DisableMonitoredStock(ctx context.Context, symbol string) error {
	query := `UPDATE monitored_stocks SET enabled = false, updated_at = $2 WHERE symbol = $1`
	result, err := db.conn.ExecContext(ctx, query, symbol, time.Now())
	if err != nil {
		return fmt.Errorf("failed to disable monitored stock: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("monitored stock %s: %w", symbol, errs.ErrNotFound)
	}
	return nil
}
