package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/models"
	"github.com/trogers1052/market-forecast/internal/pipeline"
	"go.uber.org/zap"
)

// Store is the read side used by the handlers
type Store interface {
	Ping(ctx context.Context) error
	GetRank(ctx context.Context) ([]models.RankRecord, error)
	LatestPrediction(ctx context.Context, series models.Series, symbol string) (*models.PredictionRecord, error)
	GetStatistic(ctx context.Context, series models.Series, symbol string, window int) (*models.StatisticsRecord, error)
	PricesBetween(ctx context.Context, series models.Series, symbol string, start, end time.Time, limit int) ([]*models.PricePoint, error)
}

// maxPriceLimit caps the limit query parameter of GET /prices
const maxPriceLimit = 10000

// Pipeline runs syncs on request
type Pipeline interface {
	Run(ctx context.Context, series models.Series) (*pipeline.Report, error)
	RunAll(ctx context.Context) ([]*pipeline.Report, error)
}

// RankReader serves a cached ranking
type RankReader interface {
	GetRank(ctx context.Context) ([]models.RankRecord, bool, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store    Store
	pipeline Pipeline
	cache    RankReader
	window   int
	logger   *zap.Logger
}

// NewHandler creates a new Handler. cache may be nil.
func NewHandler(store Store, p Pipeline, cache RankReader, defaultWindow int, logger *zap.Logger) *Handler {
	return &Handler{
		store:    store,
		pipeline: p,
		cache:    cache,
		window:   defaultWindow,
		logger:   logger,
	}
}

// syncResponse is returned by POST /sync
type syncResponse struct {
	Reports []*pipeline.Report `json:"reports"`
	Error   string             `json:"error,omitempty"`
}

// Sync handles POST /sync
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Series string `json:"series"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Series == "" {
		reports, err := h.pipeline.RunAll(r.Context())
		resp := syncResponse{Reports: reports}
		if err != nil {
			h.logger.Error("Sync request failed", zap.Error(err))
			resp.Error = err.Error()
			if len(reports) == 0 {
				respondJSON(w, http.StatusInternalServerError, resp)
				return
			}
		}
		respondJSON(w, http.StatusOK, resp)
		return
	}

	series, err := models.ParseSeries(req.Series)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.pipeline.Run(r.Context(), series)
	if err != nil {
		h.logger.Error("Sync request failed", zap.String("series", series.String()), zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, syncResponse{Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, syncResponse{Reports: []*pipeline.Report{report}})
}

// GetRank handles GET /rank
func (h *Handler) GetRank(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		records, ok, err := h.cache.GetRank(r.Context())
		if err != nil {
			h.logger.Warn("Rank cache read failed", zap.Error(err))
		}
		if ok {
			w.Header().Set("X-Cache", "HIT")
			respondJSON(w, http.StatusOK, records)
			return
		}
	}

	records, err := h.store.GetRank(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []models.RankRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

// GetPrediction handles GET /predictions/{symbol}
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	series, ok := seriesParam(w, r)
	if !ok {
		return
	}

	pred, err := h.store.LatestPrediction(r.Context(), series, symbol)
	if errors.Is(err, errs.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no prediction for "+symbol)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, struct {
		*models.PredictionRecord
		TargetDate string `json:"target_date"`
	}{pred, pred.TargetDate().Format("2006-01-02")})
}

// GetStatistic handles GET /statistics/{symbol}
func (h *Handler) GetStatistic(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	series, ok := seriesParam(w, r)
	if !ok {
		return
	}

	window := h.window
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "window must be a positive integer")
			return
		}
		window = n
	}

	stat, err := h.store.GetStatistic(r.Context(), series, symbol, window)
	if errors.Is(err, errs.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no statistics for "+symbol)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, struct {
		*models.StatisticsRecord
		Label string `json:"label"`
	}{stat, stat.Label()})
}

// pricesResponse is returned by GET /prices/{symbol}
type pricesResponse struct {
	Symbol string               `json:"symbol"`
	Series models.Series        `json:"series"`
	Count  int                  `json:"count"`
	Data   []*models.PricePoint `json:"data"`
}

// GetPrices handles GET /prices/{symbol}
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	series, ok := seriesParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	start, err := dateParam(q.Get("start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := dateParam(q.Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		respondError(w, http.StatusBadRequest, "end is before start")
		return
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPriceLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxPriceLimit))
			return
		}
		limit = n
	}

	prices, err := h.store.PricesBetween(r.Context(), series, symbol, start, end, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if prices == nil {
		prices = []*models.PricePoint{}
	}
	respondJSON(w, http.StatusOK, pricesResponse{Symbol: symbol, Series: series, Count: len(prices), Data: prices})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func seriesParam(w http.ResponseWriter, r *http.Request) (models.Series, bool) {
	v := r.URL.Query().Get("series")
	if v == "" {
		return models.SeriesStock, true
	}
	series, err := models.ParseSeries(v)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return series, true
}

// dateParam parses an optional YYYY-MM-DD value; empty yields the zero time
func dateParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
