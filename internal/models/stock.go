package models

import "time"

// Stock holds reference metadata for a tradable equity
type Stock struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Exchange     string    `json:"exchange,omitempty"`
	Sector       string    `json:"sector,omitempty"`
	Industry     string    `json:"industry,omitempty"`
	CurrentPrice float64   `json:"current_price"`
	LastUpdated  time.Time `json:"last_updated"`
	CreatedAt    time.Time `json:"created_at"`
}

// MonitoredStock is a symbol tracked by the stock series
type MonitoredStock struct {
	Symbol    string    `json:"symbol"`
	Enabled   bool      `json:"enabled"`
	Priority  int       `json:"priority"` // 1=high, 2=medium, 3=low
	Notes     string    `json:"notes,omitempty"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
