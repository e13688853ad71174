package models

import "time"

// Event types published by the pipeline
const (
	EventPricesSynced      = "PRICES_SYNCED"
	EventPredictionCreated = "PREDICTION_CREATED"
	EventRankingUpdated    = "RANKING_UPDATED"
)

// Command types accepted from Kafka
const (
	EventSyncRequested = "SYNC_REQUESTED"
)

// PipelineEvent is the Kafka payload for pipeline notifications
type PipelineEvent struct {
	EventType  string            `json:"event_type"`
	Series     Series            `json:"series,omitempty"`
	Symbol     string            `json:"symbol,omitempty"`
	Start      *time.Time        `json:"start,omitempty"`
	End        *time.Time        `json:"end,omitempty"`
	Rows       int               `json:"rows,omitempty"`
	Failed     []SymbolFailure   `json:"failed,omitempty"`
	Prediction *PredictionRecord `json:"prediction,omitempty"`
	Ranking    []RankRecord      `json:"ranking,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// SyncCommand is the Kafka payload requesting a pipeline run
type SyncCommand struct {
	EventType string `json:"event_type"`
	Series    string `json:"series,omitempty"`
	Source    string `json:"source,omitempty"`
}
