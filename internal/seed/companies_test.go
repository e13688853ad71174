package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/market-forecast/internal/models"
	"go.uber.org/zap"
)

const companiesCSV = `Exchange,Symbol,Shortname,Longname,Sector,Industry,Currentprice,Marketcap
NMS,AAPL,Apple Inc.,Apple Inc.,Technology,Consumer Electronics,254.49,3846819807232
NMS,nvda,NVIDIA Corporation,NVIDIA Corporation,Technology,Semiconductors,134.7,3298803056640
NYQ,,Blank Row,,,,,
NYQ,BRK-B,Berkshire Hathaway Inc. New,"Berkshire Hathaway Inc.",Financial Services,Insurance - Diversified,,
`

func TestParseCompanies(t *testing.T) {
	stocks, err := ParseCompanies(strings.NewReader(companiesCSV))
	require.NoError(t, err)
	require.Len(t, stocks, 3)

	assert.Equal(t, &models.Stock{
		Symbol:       "AAPL",
		Name:         "Apple Inc.",
		Exchange:     "NMS",
		Sector:       "Technology",
		Industry:     "Consumer Electronics",
		CurrentPrice: 254.49,
	}, stocks[0])
	assert.Equal(t, "NVDA", stocks[1].Symbol)
	assert.Equal(t, "BRK-B", stocks[2].Symbol)
	assert.Zero(t, stocks[2].CurrentPrice)
}

func TestParseCompaniesErrors(t *testing.T) {
	_, err := ParseCompanies(strings.NewReader("Symbol,Sector\nAAPL,Technology\n"))
	assert.ErrorContains(t, err, "missing column")

	_, err = ParseCompanies(strings.NewReader(""))
	assert.ErrorContains(t, err, "failed to read header")

	_, err = ParseCompanies(strings.NewReader("Symbol,Shortname,Exchange,Sector,Industry,Currentprice\nAAPL,Apple,NMS,Tech,HW,n/a\n"))
	assert.ErrorContains(t, err, "invalid price")
}

type fakeStore struct {
	saved     []string
	monitored []string
	failOn    string
}

func (f *fakeStore) SaveStock(_ context.Context, s *models.Stock) error {
	if s.Symbol == f.failOn {
		return errors.New("constraint violation")
	}
	f.saved = append(f.saved, s.Symbol)
	return nil
}

func (f *fakeStore) CreateMonitoredStock(_ context.Context, m *models.MonitoredStock) error {
	if !m.Enabled {
		return errors.New("expected enabled")
	}
	f.monitored = append(f.monitored, m.Symbol)
	return nil
}

func TestLoad(t *testing.T) {
	store := &fakeStore{failOn: "MSFT"}
	stocks := []*models.Stock{{Symbol: "AAPL"}, {Symbol: "MSFT"}, {Symbol: "NVDA"}}

	res := Load(context.Background(), store, stocks, zap.NewNop())

	assert.Equal(t, []string{"AAPL", "NVDA"}, res.OK)
	assert.Equal(t, []string{"MSFT"}, res.FailedSymbols())
	assert.Equal(t, []string{"AAPL", "NVDA"}, store.monitored)
}
