package brapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbr/indice/pkg/config"
	"github.com/quantbr/indice/pkg/httputil"
	"github.com/quantbr/indice/pkg/logger"
	"github.com/quantbr/indice/pkg/redis"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Brapi: config.BrapiConfig{BaseURL: server.URL, Token: "test-token"},
	}

	redisClient, err := redis.New(cfg) // disabled: cache misses everything
	require.NoError(t, err)

	log := logger.NewNop()
	return NewClient(cfg, httputil.New(log), redis.NewCache(redisClient, "test"), log)
}

func TestGetLatestPrices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote/PETR3,VALE3", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))

		fmt.Fprint(w, `{
			"results": [
				{"symbol": "PETR3", "regularMarketPrice": 33.77, "regularMarketTime": "2025-07-08T20:00:00Z"},
				{"symbol": "VALE3", "regularMarketPrice": 57.12, "regularMarketTime": "2025-07-08T20:00:00Z"}
			]
		}`)
	})

	quotes, err := client.GetLatestPrices(context.Background(), []string{"PETR3", "VALE3"})
	require.NoError(t, err)

	require.Len(t, quotes, 2)
	assert.Equal(t, "33.77", quotes["PETR3"].Price.String())
	assert.Equal(t, "57.12", quotes["VALE3"].Price.String())
}

// Unknown tickers are simply absent from the result, never an error.
func TestGetLatestPrices_UnknownTickerAbsent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [{"symbol": "PETR3", "regularMarketPrice": 33.77, "regularMarketTime": "2025-07-08T20:00:00Z"}]}`)
	})

	quotes, err := client.GetLatestPrices(context.Background(), []string{"PETR3", "NOPE3"})
	require.NoError(t, err)

	assert.Len(t, quotes, 1)
	assert.NotContains(t, quotes, "NOPE3")
}

func TestGetCashDividends_SumsPaymentsOnDate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dividends", r.URL.Query().Get("modules"))

		fmt.Fprint(w, `{
			"results": [{
				"symbol": "BBAS3",
				"regularMarketPrice": 22.56,
				"regularMarketTime": "2025-07-08T20:00:00Z",
				"dividendsData": {
					"cashDividends": [
						{"rate": 0.05, "paymentDate": "2025-07-08T00:00:00Z", "label": "DIVIDENDO"},
						{"rate": 0.021927, "paymentDate": "2025-07-08T13:00:00Z", "label": "JCP"},
						{"rate": 0.30, "paymentDate": "2025-08-15T00:00:00Z", "label": "DIVIDENDO"}
					]
				}
			}]
		}`)
	})

	date := time.Date(2025, time.July, 8, 0, 0, 0, 0, time.UTC)
	dividends, err := client.GetCashDividends(context.Background(), []string{"BBAS3"}, date)
	require.NoError(t, err)

	require.Contains(t, dividends, "BBAS3")
	// Both same-day payments sum; the August one is ignored.
	assert.Equal(t, "0.071927", dividends["BBAS3"].String())
}

func TestGetCashDividends_NoPaymentsOmitted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [{"symbol": "PETR3", "regularMarketPrice": 33.77, "regularMarketTime": "2025-07-08T20:00:00Z"}]}`)
	})

	date := time.Date(2025, time.July, 8, 0, 0, 0, 0, time.UTC)
	dividends, err := client.GetCashDividends(context.Background(), []string{"PETR3"}, date)
	require.NoError(t, err)

	assert.Empty(t, dividends)
}

func TestGetLatestPrices_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	})

	_, err := client.GetLatestPrices(context.Background(), []string{"PETR3"})
	assert.Error(t, err)
}

func TestGetLatestPrices_BatchesLargeRequests(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		fmt.Fprint(w, `{"results": []}`)
	})

	tickers := make([]string, 0, 45)
	for i := 0; i < 45; i++ {
		tickers = append(tickers, fmt.Sprintf("TIC%02d", i))
	}

	_, err := client.GetLatestPrices(context.Background(), tickers)
	require.NoError(t, err)

	assert.Len(t, paths, 3) // 20 + 20 + 5
}
