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

// SaveStock creates or updates reference metadata for a stock
func (db *DB) SaveStock(ctx context.Context, s *models.Stock) error {
	query := `
		INSERT INTO stocks (symbol, name, exchange, sector, industry, current_price, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			exchange = EXCLUDED.exchange,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			current_price = EXCLUDED.current_price,
			last_updated = EXCLUDED.last_updated
		RETURNING id, created_at
	`
	if s.LastUpdated.IsZero() {
		s.LastUpdated = time.Now()
	}
	err := db.conn.QueryRowContext(ctx, query,
		s.Symbol, s.Name, s.Exchange, s.Sector, s.Industry,
		decimal.NewFromFloat(s.CurrentPrice), s.LastUpdated,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save stock: %w", err)
	}
	return nil
}

// GetStock retrieves a stock by symbol
func (db *DB) GetStock(ctx context.Context, symbol string) (*models.Stock, error) {
	query := `
		SELECT id, symbol, name, exchange, sector, industry, current_price, last_updated, created_at
		FROM stocks
		WHERE symbol = $1
	`
	s, err := scanStock(db.conn.QueryRowContext(ctx, query, symbol))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock %s: %w", symbol, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	return s, nil
}

// GetAllStocks retrieves every stock ordered by symbol
func (db *DB) GetAllStocks(ctx context.Context) ([]*models.Stock, error) {
	query := `
		SELECT id, symbol, name, exchange, sector, industry, current_price, last_updated, created_at
		FROM stocks
		ORDER BY symbol ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get stocks: %w", err)
	}
	defer rows.Close()

	var stocks []*models.Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

// UpdateCurrentPrice sets the current price of a stock from its latest close
func (db *DB) UpdateCurrentPrice(ctx context.Context, symbol string, price float64) error {
	query := `UPDATE stocks SET current_price = $2, last_updated = $3 WHERE symbol = $1`
	result, err := db.conn.ExecContext(ctx, query, symbol, decimal.NewFromFloat(price), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update current price: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stock %s: %w", symbol, errs.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStock(row rowScanner) (*models.Stock, error) {
	var s models.Stock
	var exchange, sector, industry sql.NullString
	var price decimal.Decimal

	if err := row.Scan(
		&s.ID, &s.Symbol, &s.Name, &exchange, &sector, &industry,
		&price, &s.LastUpdated, &s.CreatedAt,
	); err != nil {
		return nil, err
	}

	s.Exchange = exchange.String
	s.Sector = sector.String
	s.Industry = industry.String
	s.CurrentPrice = price.InexactFloat64()
	return &s, nil
}
