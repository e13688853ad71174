package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/market-forecast/internal/errs"
)

const chartBody = `{"chart":{"result":[{
  "meta":{"symbol":"AAPL","gmtoffset":-18000},
  "timestamp":[1704205800,1704292200,1704378600],
  "indicators":{"quote":[{
    "open":[187.15,null,182.15],
    "high":[188.44,null,183.09],
    "low":[183.89,null,180.88],
    "close":[185.64,null,181.91],
    "volume":[82488700,null,71983600]
  }]}
}],"error":null}}`

func TestYahooFetcher(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	t.Run("parses bars and skips null rows", func(t *testing.T) {
		var gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
			gotQuery = r.URL.RawQuery
			fmt.Fprint(w, chartBody)
		}))
		defer srv.Close()

		f := NewYahooFetcher(srv.URL, "", 5*time.Second)
		rows, err := f.FetchSymbol(context.Background(), "AAPL", start, end)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Contains(t, gotQuery, fmt.Sprintf("period1=%d", start.Unix()))
		assert.Contains(t, gotQuery, fmt.Sprintf("period2=%d", end.Unix()))
		assert.Contains(t, gotQuery, "interval=1d")

		points, err := Normalize(rows)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), points[0].Date)
		assert.Equal(t, 185.64, points[0].Close)
		assert.Equal(t, int64(82488700), points[0].Volume)
		assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), points[1].Date)
	})

	t.Run("no data in range is empty not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
		}))
		defer srv.Close()

		rows, err := NewYahooFetcher(srv.URL, "", time.Second).FetchSymbol(context.Background(), "AAPL", start, end)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("server error is an upstream fetch error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, "Too Many Requests")
		}))
		defer srv.Close()

		_, err := NewYahooFetcher(srv.URL, "", time.Second).FetchSymbol(context.Background(), "AAPL", start, end)
		var up *errs.UpstreamFetchError
		require.True(t, errors.As(err, &up))
		assert.Equal(t, "AAPL", up.Symbol)
	})

	t.Run("context deadline is an upstream fetch error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := NewYahooFetcher(srv.URL, "", 5*time.Second).FetchSymbol(ctx, "AAPL", start, end)
		var up *errs.UpstreamFetchError
		assert.True(t, errors.As(err, &up))
	})
}
