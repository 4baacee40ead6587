package fundamentus

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/pkg/config"
	"github.com/quantbr/indice/pkg/httputil"
	"github.com/quantbr/indice/pkg/logger"
	"github.com/quantbr/indice/pkg/redis"
)

// resultRow renders one resultado.php table row in site column order:
// Papel, Cotação, P/L, P/VP, PSR, Div.Yield, P/Ativo, P/Cap.Giro, P/EBIT,
// P/Ativ Circ.Liq, EV/EBIT, EV/EBITDA, Mrg Ebit, Mrg. Líq., Liq. Corr.,
// ROIC, ROE, Liq.2meses, Patrim. Líq, Dív.Brut/ Patrim., Cresc. Rec.5a.
func resultRow(ticker, price, pl, pvp, dy, netMargin, currentRatio, roic, roe, volume, debt, growth string) string {
	return fmt.Sprintf(`<tr>
		<td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>0,00</td><td>%s</td>
		<td>0,00</td><td>0,00</td><td>0,00</td><td>0,00</td><td>0,00</td><td>0,00</td>
		<td>0,00%%</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td>
		<td>0</td><td>%s</td><td>%s</td>
	</tr>`, ticker, price, pl, pvp, dy, netMargin, currentRatio, roic, roe, volume, debt, growth)
}

func resultPage(rows ...string) string {
	page := `<html><body><table id="resultado"><tbody>`
	for _, r := range rows {
		page += r
	}
	return page + `</tbody></table></body></html>`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Fundamentus: config.FundamentusConfig{BaseURL: server.URL},
	}

	redisClient, err := redis.New(cfg) // disabled
	require.NoError(t, err)

	log := logger.NewNop()
	return NewClient(cfg, httputil.New(log), redis.NewCache(redisClient, "test"), log)
}

func TestUniverse_ParsesResultTable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/resultado.php":
			fmt.Fprint(w, resultPage(
				resultRow("PETR3", "33,77", "5,10", "1,20", "12,00%", "18,50%", "1,10", "15,00%", "22,00%", "1.234.567,00", "0,80", "8,00%"),
				resultRow("WEGE3", "40,12", "30,00", "8,00", "1,50%", "15,00%", "2,50", "25,00%", "28,00%", "900.000,00", "0,20", "12,00%"),
				resultRow("SAPR11", "36,50", "6,00", "0,90", "6,00%", "20,00%", "1,80", "10,00%", "14,00%", "500.000,00", "1,10", "5,00%"),
			))
		default:
			// detalhes.php sector lookups
			fmt.Fprint(w, `<html><body><table><tr><td class="label">Setor</td><td>Petróleo e Gás</td></tr></table></body></html>`)
		}
	})

	candidates, err := client.Universe(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	// Deterministic ticker-ascending order.
	assert.Equal(t, "PETR3", candidates[0].Ticker)
	assert.Equal(t, "SAPR11", candidates[1].Ticker)
	assert.Equal(t, "WEGE3", candidates[2].Ticker)

	petr := candidates[0]
	assert.Equal(t, "33.77", petr.CurrentPrice.String())
	assert.Equal(t, "stock", petr.AssetType)
	assert.Equal(t, "Petróleo e Gás", petr.Sector)
	assert.InDelta(t, 1234567.0, petr.AvgDailyVolume, 1e-6)

	roe, ok := petr.Metric(contracts.MetricROE)
	require.True(t, ok)
	assert.InDelta(t, 0.22, roe, 1e-9)

	ey, ok := petr.Metric(contracts.MetricEarningsYield)
	require.True(t, ok)
	assert.InDelta(t, 1/5.10, ey, 1e-9)

	// Graham upside: sqrt(22.5 / (5.10 * 1.20)) - 1.
	assert.InDelta(t, 0.9175, petr.Upside, 1e-3)

	assert.Equal(t, "unit", candidates[1].AssetType)
	require.NotNil(t, petr.OverallScore)
}

func TestUniverse_EmptyTableFails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultPage())
	})

	_, err := client.Universe(context.Background())
	assert.Error(t, err)
}

func TestCompositeScores_PercentileAverage(t *testing.T) {
	rows := []row{
		{Ticker: "AAAA3", ROE: 0.30, ROIC: 0.30, PL: 4, DividendYield: 0.10},
		{Ticker: "BBBB3", ROE: 0.20, ROIC: 0.20, PL: 8, DividendYield: 0.05},
		{Ticker: "CCCC3", ROE: 0.10, ROIC: 0.10, PL: 16, DividendYield: 0.01},
	}

	scores := compositeScores(rows)

	// AAAA3 tops every metric, CCCC3 bottoms every metric.
	assert.InDelta(t, 100.0, scores["AAAA3"], 1e-9)
	assert.InDelta(t, 50.0, scores["BBBB3"], 1e-9)
	assert.InDelta(t, 0.0, scores["CCCC3"], 1e-9)
}

func TestParseBRNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"0,80", 0.80},
		{"33,77", 33.77},
		{"-", 0},
		{"", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseBRNumber(tt.in), "input %q", tt.in)
	}
}

func TestParseBRPercent(t *testing.T) {
	assert.InDelta(t, 0.1234, parseBRPercent("12,34%"), 1e-9)
	assert.InDelta(t, -0.05, parseBRPercent("-5,00%"), 1e-9)
	assert.Zero(t, parseBRPercent("-"))
}

func TestAssetType(t *testing.T) {
	tests := []struct {
		ticker string
		want   string
	}{
		{"PETR3", "stock"},
		{"PETR4", "preferred"},
		{"USIM5", "preferred"},
		{"SAPR11", "unit"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, assetType(tt.ticker), tt.ticker)
	}
}
