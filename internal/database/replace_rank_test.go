package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/market-forecast/internal/models"
)

func TestReplaceRank_Success(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}

	records := []models.RankRecord{
		{Symbol: "NVDA", Sector: "Technology", CurrentPrice: 900, PredictedReal: 950, MovingAverage: 800, Potential: 18.75},
		{Symbol: "AAPL", Sector: "Technology", CurrentPrice: 170, PredictedReal: 172, MovingAverage: 180, Potential: -4.44},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM stock_rank").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("INSERT INTO stock_rank").
		WithArgs(1, "NVDA", "Technology", "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 18.75, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO stock_rank").
		WithArgs(2, "AAPL", "Technology", "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), -4.44, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	// The deferred tx.Rollback() is a no-op after Commit, so sqlmock never sees it.

	err = db.ReplaceRank(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, records[0].Position)
	assert.Equal(t, 2, records[1].Position)
	assert.False(t, records[0].RankedAt.IsZero())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRank_EmptyClearsRanking(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM stock_rank").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, db.ReplaceRank(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRank_ReturnsErrorIfBeginFails(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}

	mock.ExpectBegin().WillReturnError(errors.New("begin failed"))

	err = db.ReplaceRank(context.Background(), []models.RankRecord{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRank_RollsBackIfInsertFails(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM stock_rank").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO stock_rank").WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	err = db.ReplaceRank(context.Background(), []models.RankRecord{{Symbol: "AAPL"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert rank for AAPL")

	require.NoError(t, mock.ExpectationsWereMet())
}
