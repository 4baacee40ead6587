// Package brapi implements the quote provider against the brapi.dev API.
package brapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/pkg/config"
	"github.com/quantbr/indice/pkg/httputil"
	"github.com/quantbr/indice/pkg/logger"
	"github.com/quantbr/indice/pkg/redis"
)

// quoteCacheTTL keeps repeated batch lookups within one run off the wire.
const quoteCacheTTL = 5 * time.Minute

// quoteBatchSize is the maximum tickers per quote request accepted upstream.
const quoteBatchSize = 20

// Client fetches quotes and cash dividends from brapi. All brapi calls go
// through this client.
type Client struct {
	httpClient *httputil.Client
	cache      *redis.Cache
	logger     *logger.Logger
	baseURL    string
	token      string
}

var _ contracts.QuoteProvider = (*Client)(nil)

// NewClient creates a brapi client.
func NewClient(cfg *config.Config, httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		cache:      cache,
		logger:     log,
		baseURL:    cfg.Brapi.BaseURL,
		token:      cfg.Brapi.Token,
	}
}

// quoteResponse mirrors the brapi /quote payload, reduced to what we use.
type quoteResponse struct {
	Results []quoteResult `json:"results"`
}

type quoteResult struct {
	Symbol             string          `json:"symbol"`
	RegularMarketPrice decimal.Decimal `json:"regularMarketPrice"`
	RegularMarketTime  time.Time       `json:"regularMarketTime"`
	DividendsData      *dividendsData  `json:"dividendsData,omitempty"`
}

type dividendsData struct {
	CashDividends []cashDividend `json:"cashDividends"`
}

type cashDividend struct {
	Rate        decimal.Decimal `json:"rate"`
	PaymentDate time.Time       `json:"paymentDate"`
	Label       string          `json:"label"`
}

// GetLatestPrices returns the last-known quote per ticker. Tickers brapi
// does not know are absent from the result, not errors.
func (c *Client) GetLatestPrices(ctx context.Context, tickers []string) (map[string]contracts.Quote, error) {
	quotes := make(map[string]contracts.Quote, len(tickers))

	missing := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		var cached contracts.Quote
		found, err := c.cache.Get(ctx, "quote:"+ticker, &cached)
		if err != nil {
			c.logger.WithError(err).Warn("Quote cache read failed")
		}
		if found {
			quotes[ticker] = cached
		} else {
			missing = append(missing, ticker)
		}
	}

	for start := 0; start < len(missing); start += quoteBatchSize {
		end := start + quoteBatchSize
		if end > len(missing) {
			end = len(missing)
		}

		batch, err := c.fetchQuotes(ctx, missing[start:end], "")
		if err != nil {
			return nil, err
		}

		for _, result := range batch.Results {
			quote := contracts.Quote{
				Ticker: result.Symbol,
				Price:  result.RegularMarketPrice,
				Date:   result.RegularMarketTime,
			}
			quotes[result.Symbol] = quote

			if err := c.cache.Set(ctx, "quote:"+result.Symbol, quote, quoteCacheTTL); err != nil {
				c.logger.WithError(err).Warn("Quote cache write failed")
			}
		}
	}

	return quotes, nil
}

// GetCashDividends returns cash dividends paying on the given date.
func (c *Client) GetCashDividends(ctx context.Context, tickers []string, date time.Time) (map[string]decimal.Decimal, error) {
	dividends := make(map[string]decimal.Decimal)

	for start := 0; start < len(tickers); start += quoteBatchSize {
		end := start + quoteBatchSize
		if end > len(tickers) {
			end = len(tickers)
		}

		batch, err := c.fetchQuotes(ctx, tickers[start:end], "dividends")
		if err != nil {
			return nil, err
		}

		for _, result := range batch.Results {
			if result.DividendsData == nil {
				continue
			}
			total := decimal.Zero
			for _, d := range result.DividendsData.CashDividends {
				if sameDay(d.PaymentDate, date) {
					total = total.Add(d.Rate)
				}
			}
			if total.IsPositive() {
				dividends[result.Symbol] = total
			}
		}
	}

	return dividends, nil
}

// fetchQuotes calls GET /quote/{tickers} with optional modules.
func (c *Client) fetchQuotes(ctx context.Context, tickers []string, modules string) (*quoteResponse, error) {
	params := url.Values{}
	if c.token != "" {
		params.Set("token", c.token)
	}
	if modules != "" {
		params.Set("modules", modules)
	}

	fullURL := fmt.Sprintf("%s/quote/%s", c.baseURL, strings.Join(tickers, ","))
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("brapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brapi returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read brapi response: %w", err)
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse brapi response: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"requested": len(tickers),
		"returned":  len(parsed.Results),
	}).Debug("Fetched quotes")

	return &parsed, nil
}

func sameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
