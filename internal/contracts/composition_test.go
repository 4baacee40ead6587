package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCompositionSnapshot_IsNormalized(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		want    bool
	}{
		{
			name:    "empty snapshot is normalized",
			weights: nil,
			want:    true,
		},
		{
			name:    "exact unit total",
			weights: []float64{0.25, 0.25, 0.25, 0.25},
			want:    true,
		},
		{
			name:    "within tolerance",
			weights: []float64{0.33334, 0.33333, 0.33333},
			want:    true,
		},
		{
			name:    "outside tolerance",
			weights: []float64{0.50, 0.49},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewCompositionSnapshot(time.Now())
			for i, w := range tt.weights {
				ticker := string(rune('A'+i)) + "AAA3"
				s.Positions[ticker] = AssetPosition{Ticker: ticker, Weight: w}
			}

			if got := s.IsNormalized(); got != tt.want {
				t.Errorf("IsNormalized() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompositionSnapshot_TotalWeight(t *testing.T) {
	s := NewCompositionSnapshot(time.Now())
	s.Positions["PETR3"] = AssetPosition{Ticker: "PETR3", Weight: 0.6}
	s.Positions["VALE3"] = AssetPosition{Ticker: "VALE3", Weight: 0.4}

	if total := s.TotalWeight(); total != 1.0 {
		t.Errorf("TotalWeight() = %v, want 1.0", total)
	}
	if s.IsEmpty() {
		t.Error("IsEmpty() = true for populated snapshot")
	}
	if len(s.Tickers()) != 2 {
		t.Errorf("Tickers() returned %d entries, want 2", len(s.Tickers()))
	}
}

// Snapshots round-trip through JSON because they are embedded in persisted
// history points.
func TestCompositionSnapshot_JSONRoundTrip(t *testing.T) {
	entry := time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)
	s := NewCompositionSnapshot(time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC))
	s.Positions["BBAS3"] = AssetPosition{
		Ticker:     "BBAS3",
		Weight:     0.10,
		Price:      decimal.RequireFromString("22.56"),
		EntryPrice: decimal.RequireFromString("22.26"),
		EntryDate:  entry,
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded CompositionSnapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	pos, ok := decoded.Positions["BBAS3"]
	if !ok {
		t.Fatal("decoded snapshot lost BBAS3")
	}
	if !pos.Price.Equal(decimal.RequireFromString("22.56")) {
		t.Errorf("Price = %s, want 22.56", pos.Price)
	}
	if !pos.EntryDate.Equal(entry) {
		t.Errorf("EntryDate = %s, want %s", pos.EntryDate, entry)
	}
}

func TestCandidate_Score(t *testing.T) {
	var c Candidate
	if _, ok := c.Score(); ok {
		t.Error("Score() ok = true for candidate without score")
	}

	score := 87.5
	c.OverallScore = &score
	if got, ok := c.Score(); !ok || got != 87.5 {
		t.Errorf("Score() = %v, %v, want 87.5, true", got, ok)
	}
}

func TestCandidate_Metric(t *testing.T) {
	c := Candidate{Fundamentals: map[string]float64{MetricROE: 0.15}}

	if v, ok := c.Metric(MetricROE); !ok || v != 0.15 {
		t.Errorf("Metric(roe) = %v, %v, want 0.15, true", v, ok)
	}
	if _, ok := c.Metric(MetricROIC); ok {
		t.Error("Metric(roic) ok = true for missing metric")
	}
}
