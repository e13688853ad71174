package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/models"
)

func TestStatisticsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	t.Run("UpsertStatistic replaces the current window", func(t *testing.T) {
		testDB.TruncateAll(t)

		rec := &models.StatisticsRecord{
			Symbol:        "AAPL",
			WindowSize:    200,
			WindowStart:   day(2023, 3, 1),
			WindowEnd:     day(2023, 12, 29),
			MovingAverage: 180.5,
		}
		require.NoError(t, testDB.UpsertStatistic(ctx, models.SeriesStock, rec))

		rec.WindowStart = day(2023, 3, 2)
		rec.WindowEnd = day(2024, 1, 2)
		rec.MovingAverage = 181.25
		require.NoError(t, testDB.UpsertStatistic(ctx, models.SeriesStock, rec))

		got, err := testDB.GetStatistic(ctx, models.SeriesStock, "AAPL", 200)
		require.NoError(t, err)
		assert.Equal(t, 181.25, got.MovingAverage)
		assert.Equal(t, day(2024, 1, 2), got.WindowEnd)

		all, err := testDB.GetStatistics(ctx, models.SeriesStock, "AAPL")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("GetStatistic returns not found", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetStatistic(ctx, models.SeriesIndex, "^GSPC", 200)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}
