package forecast

import (
	"context"
	"fmt"

	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/feature"
	"github.com/trogers1052/market-forecast/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store reads price history and persists predictions
type Store interface {
	RecentPrices(ctx context.Context, series models.Series, symbol string, limit int) ([]*models.PricePoint, error)
	CreatePrediction(ctx context.Context, series models.Series, p *models.PredictionRecord) error
}

// Predictor is the loaded model as seen by the engine
type Predictor interface {
	Infer(ctx context.Context, features []float64) (float64, error)
	ShapeOf() (feature.Shape, error)
}

// MovingAverager supplies the baseline a prediction is judged against
type MovingAverager interface {
	MovingAverage(ctx context.Context, series models.Series, symbol string, window int) (float64, bool, error)
}

// Engine produces next-close predictions for stored series
type Engine struct {
	store       Store
	model       Predictor
	averages    MovingAverager
	maWindow    int
	concurrency int
	logger      *zap.Logger
}

// NewEngine creates a prediction engine. maWindow is the moving average window
// used for recommendations.
func NewEngine(store Store, model Predictor, averages MovingAverager, maWindow, concurrency int, logger *zap.Logger) *Engine {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Engine{
		store:       store,
		model:       model,
		averages:    averages,
		maWindow:    maWindow,
		concurrency: concurrency,
		logger:      logger,
	}
}

// PredictNext predicts the close following the last stored row of symbol and stores the result
func (e *Engine) PredictNext(ctx context.Context, series models.Series, symbol string) (*models.PredictionRecord, error) {
	shape, err := e.model.ShapeOf()
	if err != nil {
		return nil, err
	}
	if shape.Timesteps <= 0 {
		return nil, fmt.Errorf("model window of %d timesteps: %w", shape.Timesteps, errs.ErrModelUnavailable)
	}

	recent, err := e.store.RecentPrices(ctx, series, symbol, shape.Timesteps)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices for %s: %w", symbol, err)
	}
	if len(recent) < shape.Timesteps {
		return nil, fmt.Errorf("%s has %d rows, need %d: %w", symbol, len(recent), shape.Timesteps, errs.ErrInsufficientData)
	}

	rows := models.Reverse(recent)
	w := feature.Window{
		Close:  make([]float64, len(rows)),
		Volume: make([]float64, len(rows)),
	}
	for i, p := range rows {
		w.Close[i] = p.Close
		w.Volume[i] = float64(p.Volume)
	}

	vec, fit, err := feature.Standardize(w, shape)
	if err != nil {
		return nil, err
	}

	scaled, err := e.model.Infer(ctx, vec)
	if err != nil {
		return nil, fmt.Errorf("failed to run model for %s: %w", symbol, err)
	}
	predicted := feature.Destandardize(scaled, fit)

	ma, ok, err := e.averages.MovingAverage(ctx, series, symbol, e.maWindow)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("moving average %d for %s: %w", e.maWindow, symbol, errs.ErrInsufficientData)
	}

	last := rows[len(rows)-1]
	rec := &models.PredictionRecord{
		Symbol:          symbol,
		WindowSize:      shape.Timesteps,
		WindowStart:     rows[0].Date,
		WindowEnd:       last.Date,
		PredictedScaled: scaled,
		PredictedReal:   predicted,
		LastActualClose: last.Close,
		MovingAverage:   ma,
		Recommendation:  models.Recommend(predicted, ma),
		FeatureCount:    len(vec),
	}
	if err := e.store.CreatePrediction(ctx, series, rec); err != nil {
		return nil, fmt.Errorf("failed to store prediction for %s: %w", symbol, err)
	}

	e.logger.Info("Prediction created",
		zap.String("series", series.String()),
		zap.String("symbol", symbol),
		zap.Float64("predicted", predicted),
		zap.Float64("last_close", last.Close),
		zap.Float64("moving_average", ma),
		zap.String("recommendation", string(rec.Recommendation)),
	)
	return rec, nil
}

// PredictBatch predicts every symbol. Failures are recorded per symbol and
// never stop the others. Returned records follow the order of symbols.
func (e *Engine) PredictBatch(ctx context.Context, series models.Series, symbols []string) ([]*models.PredictionRecord, models.BatchResult) {
	records := make([]*models.PredictionRecord, len(symbols))
	failures := make([]error, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			rec, err := e.PredictNext(gctx, series, symbol)
			records[i] = rec
			failures[i] = err
			return nil
		})
	}
	g.Wait()

	var result models.BatchResult
	var out []*models.PredictionRecord
	for i, symbol := range symbols {
		if failures[i] != nil {
			result.Fail(symbol, failures[i])
			continue
		}
		result.Succeed(symbol)
		out = append(out, records[i])
	}
	return out, result
}
