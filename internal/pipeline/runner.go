package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/market-forecast/internal/analytics"
	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/ingest"
	"github.com/trogers1052/market-forecast/internal/models"
	"go.uber.org/zap"
)

// Store is the persistence the runner needs beyond its engines
type Store interface {
	LastSymbolDate(ctx context.Context, series models.Series, symbol string) (time.Time, bool, error)
	LatestPrediction(ctx context.Context, series models.Series, symbol string) (*models.PredictionRecord, error)
	RecentPrices(ctx context.Context, series models.Series, symbol string, limit int) ([]*models.PricePoint, error)
	UpdateCurrentPrice(ctx context.Context, symbol string, price float64) error
	GetAllStocks(ctx context.Context) ([]*models.Stock, error)
	ReplaceRank(ctx context.Context, records []models.RankRecord) error
}

type Syncer interface {
	Sync(ctx context.Context, series models.Series) (*ingest.SyncResult, error)
}

type StatisticsRefresher interface {
	RefreshBatch(ctx context.Context, series models.Series, symbols []string, windows []int) models.BatchResult
}

type Predictor interface {
	PredictBatch(ctx context.Context, series models.Series, symbols []string) ([]*models.PredictionRecord, models.BatchResult)
}

type Ranker interface {
	Rank(ctx context.Context, symbols []string, ref analytics.Reference) (*analytics.RankResult, error)
}

// Publisher announces pipeline progress
type Publisher interface {
	PublishPricesSynced(ctx context.Context, series models.Series, start, end time.Time, rows int, result models.BatchResult) error
	PublishPredictionCreated(ctx context.Context, series models.Series, rec *models.PredictionRecord) error
	PublishRankingUpdated(ctx context.Context, records []models.RankRecord) error
}

// RankCache holds the latest ranking for readers
type RankCache interface {
	SetRank(ctx context.Context, records []models.RankRecord) error
}

// Options tunes a Runner
type Options struct {
	Series  []models.Series
	Windows []int
	// SkipFreshPredictions skips symbols whose latest prediction already
	// covers their last stored date
	SkipFreshPredictions bool
}

// Report is the outcome of one pipeline run of a series
type Report struct {
	Series      models.Series         `json:"series"`
	Sync        *ingest.SyncResult    `json:"sync"`
	Statistics  models.BatchResult    `json:"statistics"`
	Predictions models.BatchResult    `json:"predictions"`
	Fresh       []string              `json:"fresh,omitempty"`
	Ranking     *analytics.RankResult `json:"ranking,omitempty"`
	StartedAt   time.Time             `json:"started_at"`
	FinishedAt  time.Time             `json:"finished_at"`
}

// Runner chains sync, statistics, prediction and ranking for a series
type Runner struct {
	store     Store
	syncer    Syncer
	symbols   ingest.SymbolSource
	stats     StatisticsRefresher
	predictor Predictor
	ranker    Ranker
	publisher Publisher
	cache     RankCache
	opts      Options
	logger    *zap.Logger
}

// NewRunner creates a Runner. publisher and cache may be nil.
func NewRunner(
	store Store,
	syncer Syncer,
	symbols ingest.SymbolSource,
	stats StatisticsRefresher,
	predictor Predictor,
	ranker Ranker,
	publisher Publisher,
	cache RankCache,
	opts Options,
	logger *zap.Logger,
) *Runner {
	if len(opts.Series) == 0 {
		opts.Series = models.AllSeries
	}
	if len(opts.Windows) == 0 {
		opts.Windows = []int{models.WindowSMA50, models.WindowSMA200}
	}
	return &Runner{
		store:     store,
		syncer:    syncer,
		symbols:   symbols,
		stats:     stats,
		predictor: predictor,
		ranker:    ranker,
		publisher: publisher,
		cache:     cache,
		opts:      opts,
		logger:    logger,
	}
}

// Trigger runs series, or every configured series when series is empty
func (r *Runner) Trigger(ctx context.Context, series models.Series) error {
	if series == "" {
		_, err := r.RunAll(ctx)
		return err
	}
	_, err := r.Run(ctx, series)
	return err
}

// RunAll runs every configured series in order. A failed series does not stop the next.
func (r *Runner) RunAll(ctx context.Context) ([]*Report, error) {
	var reports []*Report
	var failures []error
	for _, series := range r.opts.Series {
		rep, err := r.Run(ctx, series)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", series, err))
			continue
		}
		reports = append(reports, rep)
	}
	return reports, errors.Join(failures...)
}

// Run executes the pipeline for one series. Only a failed sync or symbol
// lookup aborts the run; later steps record failures per symbol.
func (r *Runner) Run(ctx context.Context, series models.Series) (*Report, error) {
	rep := &Report{Series: series, StartedAt: time.Now()}
	log := r.logger.With(zap.String("series", series.String()))

	synced, err := r.syncer.Sync(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("failed to sync %s: %w", series, err)
	}
	rep.Sync = synced
	if synced.Updated || len(synced.Result.Failed) > 0 {
		r.publishSynced(ctx, synced)
	}

	symbols, err := r.symbols.Symbols(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols for %s: %w", series, err)
	}

	if series == models.SeriesStock && synced.Updated {
		r.refreshCurrentPrices(ctx, synced.Result.OK)
	}

	rep.Statistics = r.stats.RefreshBatch(ctx, series, symbols, r.opts.Windows)

	pending, fresh := r.needsPrediction(ctx, series, symbols)
	rep.Fresh = fresh
	records, predicted := r.predictor.PredictBatch(ctx, series, pending)
	rep.Predictions = predicted
	for _, rec := range records {
		r.publishPrediction(ctx, series, rec)
	}

	if series == models.SeriesStock {
		ranking, err := r.rank(ctx, symbols)
		if err != nil {
			log.Error("Ranking failed", zap.Error(err))
		}
		rep.Ranking = ranking
	}

	rep.FinishedAt = time.Now()
	log.Info("Pipeline run finished",
		zap.Int("rows", synced.Rows),
		zap.Int("statistics_failed", len(rep.Statistics.Failed)),
		zap.Int("predicted", len(rep.Predictions.OK)),
		zap.Int("predictions_failed", len(rep.Predictions.Failed)),
		zap.Int("fresh", len(rep.Fresh)),
		zap.Duration("took", rep.FinishedAt.Sub(rep.StartedAt)),
	)
	return rep, nil
}

// needsPrediction splits symbols into those to predict and those already current
func (r *Runner) needsPrediction(ctx context.Context, series models.Series, symbols []string) ([]string, []string) {
	if !r.opts.SkipFreshPredictions {
		return symbols, nil
	}

	var pending, fresh []string
	for _, symbol := range symbols {
		if r.isFresh(ctx, series, symbol) {
			fresh = append(fresh, symbol)
			continue
		}
		pending = append(pending, symbol)
	}
	return pending, fresh
}

func (r *Runner) isFresh(ctx context.Context, series models.Series, symbol string) bool {
	last, ok, err := r.store.LastSymbolDate(ctx, series, symbol)
	if err != nil || !ok {
		return false
	}
	pred, err := r.store.LatestPrediction(ctx, series, symbol)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			r.logger.Warn("Failed to read latest prediction", zap.String("symbol", symbol), zap.Error(err))
		}
		return false
	}
	return pred.WindowEnd.Equal(last)
}

func (r *Runner) refreshCurrentPrices(ctx context.Context, symbols []string) {
	for _, symbol := range symbols {
		latest, err := r.store.RecentPrices(ctx, models.SeriesStock, symbol, 1)
		if err != nil || len(latest) == 0 {
			continue
		}
		if err := r.store.UpdateCurrentPrice(ctx, symbol, latest[0].Close); err != nil && !errors.Is(err, errs.ErrNotFound) {
			r.logger.Warn("Failed to update current price", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

func (r *Runner) rank(ctx context.Context, symbols []string) (*analytics.RankResult, error) {
	stocks, err := r.store.GetAllStocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock metadata: %w", err)
	}

	ranking, err := r.ranker.Rank(ctx, symbols, analytics.NewStockDirectory(stocks))
	if err != nil {
		return nil, err
	}
	if err := r.store.ReplaceRank(ctx, ranking.Records); err != nil {
		return ranking, err
	}

	if r.cache != nil {
		if err := r.cache.SetRank(ctx, ranking.Records); err != nil {
			r.logger.Warn("Failed to cache ranking", zap.Error(err))
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishRankingUpdated(ctx, ranking.Records); err != nil {
			r.logger.Warn("Failed to publish ranking", zap.Error(err))
		}
	}
	return ranking, nil
}

func (r *Runner) publishSynced(ctx context.Context, res *ingest.SyncResult) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishPricesSynced(ctx, res.Series, res.Start, res.End, res.Rows, res.Result); err != nil {
		r.logger.Warn("Failed to publish sync event", zap.Error(err))
	}
}

func (r *Runner) publishPrediction(ctx context.Context, series models.Series, rec *models.PredictionRecord) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishPredictionCreated(ctx, series, rec); err != nil {
		r.logger.Warn("Failed to publish prediction", zap.String("symbol", rec.Symbol), zap.Error(err))
	}
}
