// Package fundamentus implements the fundamentals/score provider by
// scraping the Fundamentus result table.
package fundamentus

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/quantbr/indice/pkg/config"
	"github.com/quantbr/indice/pkg/httputil"
	"github.com/quantbr/indice/pkg/logger"
	"github.com/quantbr/indice/pkg/redis"
)

// sectorCacheTTL keeps per-ticker sector lookups off the site; sectors
// practically never change.
const sectorCacheTTL = 7 * 24 * time.Hour

// Client scrapes Fundamentus. All Fundamentus calls go through this client.
type Client struct {
	httpClient *httputil.Client
	cache      *redis.Cache
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a Fundamentus client.
func NewClient(cfg *config.Config, httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		cache:      cache,
		logger:     log,
		baseURL:    cfg.Fundamentus.BaseURL,
	}
}

// row is one ticker's line in the resultado.php table.
type row struct {
	Ticker         string
	Price          float64
	PL             float64
	PVP            float64
	DividendYield  float64
	EVEBIT         float64
	NetMargin      float64
	CurrentRatio   float64
	ROIC           float64
	ROE            float64
	AvgDailyVolume float64
	GrossDebtPL    float64
	RevenueGrowth  float64
}

// fetchResultTable downloads and parses the full screening table.
func (c *Client) fetchResultTable(ctx context.Context) ([]row, error) {
	doc, err := c.fetchDocument(ctx, c.baseURL+"/resultado.php")
	if err != nil {
		return nil, err
	}

	rows := make([]row, 0, 512)

	doc.Find("table#resultado tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 21 {
			return
		}

		cell := func(i int) string {
			return strings.TrimSpace(cells.Eq(i).Text())
		}

		r := row{
			Ticker:         cell(0),
			Price:          parseBRNumber(cell(1)),
			PL:             parseBRNumber(cell(2)),
			PVP:            parseBRNumber(cell(3)),
			DividendYield:  parseBRPercent(cell(5)),
			EVEBIT:         parseBRNumber(cell(10)),
			NetMargin:      parseBRPercent(cell(13)),
			CurrentRatio:   parseBRNumber(cell(14)),
			ROIC:           parseBRPercent(cell(15)),
			ROE:            parseBRPercent(cell(16)),
			AvgDailyVolume: parseBRNumber(cell(17)),
			GrossDebtPL:    parseBRNumber(cell(19)),
			RevenueGrowth:  parseBRPercent(cell(20)),
		}

		if r.Ticker == "" {
			return
		}
		rows = append(rows, r)
	})

	if len(rows) == 0 {
		return nil, fmt.Errorf("fundamentus result table was empty")
	}

	c.logger.WithField("rows", len(rows)).Debug("Fetched fundamentus table")

	return rows, nil
}

// Sector resolves a ticker's sector from the detail page, cached for a week.
// Errors degrade to an empty sector rather than failing a whole universe
// build over one ticker's page.
func (c *Client) Sector(ctx context.Context, ticker string) string {
	var cached string
	if found, _ := c.cache.Get(ctx, "sector:"+ticker, &cached); found {
		return cached
	}

	doc, err := c.fetchDocument(ctx, fmt.Sprintf("%s/detalhes.php?papel=%s", c.baseURL, ticker))
	if err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Sector lookup failed")
		return ""
	}

	sector := ""
	doc.Find("td.label").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		if strings.TrimSpace(td.Text()) == "Setor" {
			sector = strings.TrimSpace(td.Next().Text())
			return false
		}
		return true
	})

	if sector != "" {
		if err := c.cache.Set(ctx, "sector:"+ticker, sector, sectorCacheTTL); err != nil {
			c.logger.WithError(err).Warn("Sector cache write failed")
		}
	}

	return sector
}

// fetchDocument downloads a page into a goquery document.
func (c *Client) fetchDocument(ctx context.Context, fullURL string) (*goquery.Document, error) {
	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("fundamentus request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fundamentus returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fundamentus HTML: %w", err)
	}

	return doc, nil
}

// parseBRNumber parses Brazilian-formatted numbers like "1.234,56".
func parseBRNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}

	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return value
}

// parseBRPercent parses values like "12,34%" into fractions (0.1234).
func parseBRPercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	return parseBRNumber(s) / 100
}
