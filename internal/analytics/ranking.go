package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/models"
	"go.uber.org/zap"
)

// PredictionReader reads stored predictions
type PredictionReader interface {
	LatestPrediction(ctx context.Context, series models.Series, symbol string) (*models.PredictionRecord, error)
}

// MovingAverager computes the moving average of a stored series
type MovingAverager interface {
	MovingAverage(ctx context.Context, series models.Series, symbol string, window int) (float64, bool, error)
}

// Reference supplies descriptive metadata for ranked symbols
type Reference interface {
	SectorOf(symbol string) string
	IndustryOf(symbol string) string
	LastPrice(symbol string) (float64, bool)
}

// StockDirectory is an in-memory Reference built from stock metadata
type StockDirectory struct {
	stocks map[string]*models.Stock
}

// NewStockDirectory indexes stocks by symbol
func NewStockDirectory(stocks []*models.Stock) *StockDirectory {
	d := &StockDirectory{stocks: make(map[string]*models.Stock, len(stocks))}
	for _, s := range stocks {
		d.stocks[s.Symbol] = s
	}
	return d
}

func (d *StockDirectory) SectorOf(symbol string) string {
	if s, ok := d.stocks[symbol]; ok {
		return s.Sector
	}
	return ""
}

func (d *StockDirectory) IndustryOf(symbol string) string {
	if s, ok := d.stocks[symbol]; ok {
		return s.Industry
	}
	return ""
}

func (d *StockDirectory) LastPrice(symbol string) (float64, bool) {
	if s, ok := d.stocks[symbol]; ok && s.CurrentPrice > 0 {
		return s.CurrentPrice, true
	}
	return 0, false
}

// RankResult is a ranking plus the per-symbol outcome of building it
type RankResult struct {
	Records []models.RankRecord `json:"records"`
	Result  models.BatchResult  `json:"result"`
}

// Ranker orders stock symbols by predicted potential over their long moving average
type Ranker struct {
	predictions PredictionReader
	prices      PriceReader
	averages    MovingAverager
	window      int
	logger      *zap.Logger
}

// NewRanker creates a Ranker using the window sized moving average as its baseline
func NewRanker(predictions PredictionReader, prices PriceReader, averages MovingAverager, window int, logger *zap.Logger) *Ranker {
	return &Ranker{
		predictions: predictions,
		prices:      prices,
		averages:    averages,
		window:      window,
		logger:      logger,
	}
}

// Rank computes the potential of each symbol and sorts descending.
// Symbols without a prediction or enough history are left out and reported as failed.
// Ties keep the order of symbols.
func (r *Ranker) Rank(ctx context.Context, symbols []string, ref Reference) (*RankResult, error) {
	res := &RankResult{Records: make([]models.RankRecord, 0, len(symbols))}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := r.rankOne(ctx, symbol, ref)
		if err != nil {
			r.logger.Debug("Skipping symbol in ranking", zap.String("symbol", symbol), zap.Error(err))
			res.Result.Fail(symbol, err)
			continue
		}
		res.Records = append(res.Records, *rec)
		res.Result.Succeed(symbol)
	}

	sort.SliceStable(res.Records, func(i, j int) bool {
		return res.Records[i].Potential > res.Records[j].Potential
	})
	for i := range res.Records {
		res.Records[i].Position = i + 1
	}
	return res, nil
}

func (r *Ranker) rankOne(ctx context.Context, symbol string, ref Reference) (*models.RankRecord, error) {
	pred, err := r.predictions.LatestPrediction(ctx, models.SeriesStock, symbol)
	if err != nil {
		return nil, err
	}

	last, err := r.lastClose(ctx, symbol)
	if err != nil {
		return nil, err
	}
	// a prediction older than the newest close is not ranked against today's average
	if pred.WindowEnd.Before(last.Date) {
		return nil, fmt.Errorf("prediction window ends %s before last close %s: %w",
			pred.WindowEnd.Format("2006-01-02"), last.Date.Format("2006-01-02"), errs.ErrInsufficientData)
	}

	ma, ok, err := r.averages.MovingAverage(ctx, models.SeriesStock, symbol, r.window)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("moving average %d: %w", r.window, errs.ErrInsufficientData)
	}
	if ma == 0 {
		return nil, fmt.Errorf("moving average %d is zero: %w", r.window, errs.ErrInsufficientData)
	}

	price := last.Close
	if p, ok := ref.LastPrice(symbol); ok {
		price = p
	}

	return &models.RankRecord{
		Symbol:        symbol,
		Sector:        ref.SectorOf(symbol),
		Industry:      ref.IndustryOf(symbol),
		CurrentPrice:  price,
		PredictedReal: pred.PredictedReal,
		MovingAverage: ma,
		Potential:     models.Potential(pred.PredictedReal, ma),
	}, nil
}

func (r *Ranker) lastClose(ctx context.Context, symbol string) (*models.PricePoint, error) {
	latest, err := r.prices.RecentPrices(ctx, models.SeriesStock, symbol, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest close for %s: %w", symbol, err)
	}
	if len(latest) == 0 {
		return nil, fmt.Errorf("no stored prices: %w", errs.ErrInsufficientData)
	}
	return latest[0], nil
}

// Skipped reports whether err excluded a symbol for missing data rather than a failure
func Skipped(err error) bool {
	return errors.Is(err, errs.ErrInsufficientData) || errors.Is(err, errs.ErrNotFound)
}
