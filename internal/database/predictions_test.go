package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/models"
)

func TestPredictionsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	newPrediction := func(symbol string, predicted float64) *models.PredictionRecord {
		return &models.PredictionRecord{
			Symbol:          symbol,
			WindowSize:      60,
			WindowStart:     day(2024, 1, 2),
			WindowEnd:       day(2024, 3, 28),
			PredictedScaled: 0.42,
			PredictedReal:   predicted,
			LastActualClose: 171.48,
			MovingAverage:   180,
			Recommendation:  models.Recommend(predicted, 180),
			FeatureCount:    120,
		}
	}

	t.Run("CreatePrediction assigns id", func(t *testing.T) {
		testDB.TruncateAll(t)

		p := newPrediction("AAPL", 172.5)
		require.NoError(t, testDB.CreatePrediction(ctx, models.SeriesStock, p))
		assert.NotZero(t, p.ID)
		assert.False(t, p.CreatedAt.IsZero())
	})

	t.Run("LatestPrediction returns the newest record", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.CreatePrediction(ctx, models.SeriesStock, newPrediction("AAPL", 172.5)))
		require.NoError(t, testDB.CreatePrediction(ctx, models.SeriesStock, newPrediction("AAPL", 190)))

		got, err := testDB.LatestPrediction(ctx, models.SeriesStock, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, 190.0, got.PredictedReal)
		assert.Equal(t, models.RecommendationBuy, got.Recommendation)
		assert.Equal(t, day(2024, 3, 28), got.WindowEnd)
		assert.Equal(t, 120, got.FeatureCount)
	})

	t.Run("LatestPrediction returns not found", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.LatestPrediction(ctx, models.SeriesIndex, "^GSPC")
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}
