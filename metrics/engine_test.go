package metrics

import (
	"context"
	"math"
	"reflect"
	"testing"

	"putscreenpro/models"
)

type fakeSnapshots struct {
	data  map[string]*models.GreeksSnapshot
	calls int
}

func (f *fakeSnapshots) GetGreeksSnapshot(_ context.Context, symbol string) *models.GreeksSnapshot {
	f.calls++
	return f.data[symbol]
}

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v (tol %v)", name, got, want, tol)
	}
}

func TestCalculateEstimatedPath(t *testing.T) {
	engine := NewEngine(nil, 0.05)

	// $100 stock, $95 strike, $1.50 premium, 10 days out
	m := engine.Calculate(context.Background(), 100, 95, 1.50, 10, "")

	if m.DataSource != models.SourceEstimated {
		t.Fatalf("data source = %q, want %q", m.DataSource, models.SourceEstimated)
	}
	approx(t, "cash required", m.CashRequired, 9500, 1e-9)
	approx(t, "premium received", m.PremiumReceived, 150, 1e-9)
	approx(t, "period return", m.PeriodReturn, 1.5789, 0.0001)
	approx(t, "annualized return", m.AnnualizedReturn, 57.6316, 0.001)
	approx(t, "distance to strike", m.DistanceToStrike, 5.0, 1e-9)

	// moneyness 1.0526 falls in the moderately-OTM band
	approx(t, "implied volatility", m.ImpliedVolatility, 35.0, 1e-9)
	// N(-d2) with S=100 K=95 T=10/365 vol=0.35 r=0.05
	approx(t, "pitm", m.PITM, 18.94, 0.05)

	// Both payoff branches keep the premium, so the probability weighting
	// collapses to the annualized premium return.
	approx(t, "expected return", m.ExpectedReturn, m.AnnualizedReturn, 1e-9)

	// (35-20)*2 with no gamma penalty
	approx(t, "vol risk premium", m.VolatilityRiskPremium, 30.0, 1e-9)

	if m.SharpeRatio <= 0 {
		t.Errorf("sharpe ratio = %v, want > 0", m.SharpeRatio)
	}
	// No greeks on the estimated path
	approx(t, "theta efficiency", m.ThetaEfficiency, 0, 1e-9)

	// return 30 + sharpe 25 + vol 20 + theta 0, all but theta saturated
	approx(t, "advanced score", m.AdvancedScore, 75.0, 0.001)
}

func TestCalculateRealPath(t *testing.T) {
	snaps := &fakeSnapshots{data: map[string]*models.GreeksSnapshot{
		"AAPL250815P00095000": {
			Delta:             models.FloatPtr(-0.20),
			Gamma:             models.FloatPtr(0.02),
			Theta:             models.FloatPtr(-0.094),
			Vega:              models.FloatPtr(0.12),
			ImpliedVolatility: models.FloatPtr(40.0),
			Bid:               models.FloatPtr(1.45),
			Ask:               models.FloatPtr(1.55),
			LastPrice:         models.FloatPtr(1.50),
			LastTradeSize:     models.IntPtr(12),
		},
	}}
	engine := NewEngine(snaps, 0.05)

	m := engine.Calculate(context.Background(), 100, 95, 1.50, 10, "AAPL250815P00095000")

	if m.DataSource != models.SourceReal {
		t.Fatalf("data source = %q, want %q", m.DataSource, models.SourceReal)
	}
	approx(t, "pitm from delta", m.PITM, 20.0, 1e-9)
	approx(t, "implied volatility", m.ImpliedVolatility, 40.0, 1e-9)
	approx(t, "delta", m.Delta, -0.20, 1e-9)
	approx(t, "bid", m.Bid, 1.45, 1e-9)
	approx(t, "ask", m.Ask, 1.55, 1e-9)
	if m.Volume != 12 {
		t.Errorf("volume = %d, want 12", m.Volume)
	}

	// (40-20)*2 minus |0.02|*50 gamma penalty
	approx(t, "vol risk premium", m.VolatilityRiskPremium, 39.0, 1e-9)
	// |theta|*days/premium*1000 blows past the cap
	approx(t, "theta efficiency", m.ThetaEfficiency, 100.0, 1e-9)
}

func TestCalculateSnapshotWithoutGreeksFallsBack(t *testing.T) {
	// Snapshot exists but has quote data only, so pitm must be estimated.
	snaps := &fakeSnapshots{data: map[string]*models.GreeksSnapshot{
		"AAPL250815P00095000": {
			Bid: models.FloatPtr(1.45),
			Ask: models.FloatPtr(1.55),
		},
	}}
	engine := NewEngine(snaps, 0.05)

	m := engine.Calculate(context.Background(), 100, 95, 1.50, 10, "AAPL250815P00095000")

	if m.DataSource != models.SourceEstimated {
		t.Errorf("data source = %q, want %q", m.DataSource, models.SourceEstimated)
	}
	approx(t, "bid carried over", m.Bid, 1.45, 1e-9)
}

func TestCalculateDeterministic(t *testing.T) {
	engine := NewEngine(nil, 0.05)

	first := engine.Calculate(context.Background(), 150, 140, 2.10, 14, "")
	second := engine.Calculate(context.Background(), 150, 140, 2.10, 14, "")

	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different metrics:\n%+v\n%+v", first, second)
	}
}

func TestEstimateImpliedVolatility(t *testing.T) {
	tests := []struct {
		name   string
		stock  float64
		strike float64
		want   float64
	}{
		{"deep OTM", 115, 100, 0.25},
		{"moderately OTM", 107, 100, 0.35},
		{"near the money", 100, 100, 0.45},
		{"ITM", 90, 100, 0.55},
		{"band edge 1.05 goes near-money", 105, 100, 0.45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateImpliedVolatility(tt.stock, tt.strike); got != tt.want {
				t.Errorf("EstimateImpliedVolatility(%v, %v) = %v, want %v", tt.stock, tt.strike, got, tt.want)
			}
		})
	}
}

func TestPITMBlackScholes(t *testing.T) {
	tests := []struct {
		name    string
		stock   float64
		strike  float64
		days    int
		vol     float64
		check   func(t *testing.T, got float64)
	}{
		{"expired ITM", 90, 100, 0, 0.45, func(t *testing.T, got float64) {
			if got != 100.0 {
				t.Errorf("got %v, want 100", got)
			}
		}},
		{"expired OTM", 110, 100, 0, 0.45, func(t *testing.T, got float64) {
			if got != 0.0 {
				t.Errorf("got %v, want 0", got)
			}
		}},
		{"zero volatility", 100, 95, 10, 0, func(t *testing.T, got float64) {
			if got != 50.0 {
				t.Errorf("got %v, want 50", got)
			}
		}},
		{"deep ITM clamps high", 50, 100, 30, 0.55, func(t *testing.T, got float64) {
			if got != 99.9 {
				t.Errorf("got %v, want 99.9", got)
			}
		}},
		{"deep OTM clamps low", 200, 100, 30, 0.25, func(t *testing.T, got float64) {
			if got != 0.1 {
				t.Errorf("got %v, want 0.1", got)
			}
		}},
		{"nonpositive stock uses distance band", 0, 100, 10, 0.45, func(t *testing.T, got float64) {
			if got != 50.0 {
				t.Errorf("got %v, want 50", got)
			}
		}},
		{"nonpositive strike uses distance band", 100, 0, 10, 0.45, func(t *testing.T, got float64) {
			if got != 50.0 {
				t.Errorf("got %v, want 50", got)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, PITMBlackScholes(tt.stock, tt.strike, tt.days, tt.vol, 0.05))
		})
	}
}

func TestDistanceBandPITM(t *testing.T) {
	tests := []struct {
		stock, strike, want float64
	}{
		{125, 100, 5.0},
		{115, 100, 15.0},
		{105, 100, 25.0},
		{95, 100, 50.0},
		{100, 0, 50.0},
	}
	for _, tt := range tests {
		if got := distanceBandPITM(tt.stock, tt.strike); got != tt.want {
			t.Errorf("distanceBandPITM(%v, %v) = %v, want %v", tt.stock, tt.strike, got, tt.want)
		}
	}
}

func TestVolatilityRiskPremium(t *testing.T) {
	tests := []struct {
		name  string
		ivPct float64
		gamma float64
		want  float64
	}{
		{"baseline IV yields nothing", 20, 0, 0},
		{"below baseline floors at zero", 15, 0, 0},
		{"premium without gamma", 35, 0, 30},
		{"gamma penalty deducted", 35, 0.2, 20},
		{"penalty cannot go negative", 25, 1.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VolatilityRiskPremium(tt.ivPct, tt.gamma); got != tt.want {
				t.Errorf("VolatilityRiskPremium(%v, %v) = %v, want %v", tt.ivPct, tt.gamma, got, tt.want)
			}
		})
	}
}

func TestSharpeRatioFloorsAtZero(t *testing.T) {
	engine := NewEngine(nil, 0.05)

	// Expected return below the risk-free rate
	if got := engine.SharpeRatio(2.0, 100, 95, 10, 0.35); got != 0 {
		t.Errorf("sharpe = %v, want 0 for sub-risk-free return", got)
	}
	// Zero strategy volatility
	if got := engine.SharpeRatio(50.0, 100, 95, 10, 0); got != 0 {
		t.Errorf("sharpe = %v, want 0 for zero volatility", got)
	}
	if got := engine.SharpeRatio(50.0, 100, 95, 10, 0.35); got <= 0 {
		t.Errorf("sharpe = %v, want > 0", got)
	}
}

func TestThetaEfficiency(t *testing.T) {
	tests := []struct {
		name    string
		theta   float64
		premium float64
		days    int
		want    float64
	}{
		{"zero premium", -0.05, 0, 10, 0},
		{"zero days", -0.05, 1.50, 0, 0},
		{"caps at 100", -0.094, 1.50, 10, 100},
		{"sub-cap value", -0.01, 1.50, 10, (0.01 * 10 / 1.50) * 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approx(t, "theta efficiency", ThetaEfficiency(tt.theta, tt.premium, tt.days), tt.want, 1e-9)
		})
	}
}

func TestCompositeScore(t *testing.T) {
	base := &models.Metrics{
		ExpectedReturn:        25,  // half of cap, 15 points
		SharpeRatio:           1.0, // half of cap, 12.5 points
		VolatilityRiskPremium: 10,  // half of cap, 10 points
		ThetaEfficiency:       50,  // half of cap, 12.5 points
	}
	approx(t, "half-cap score", CompositeScore(base), 50.0, 1e-9)

	saturated := &models.Metrics{
		ExpectedReturn:        500,
		SharpeRatio:           10,
		VolatilityRiskPremium: 80,
		ThetaEfficiency:       400,
	}
	approx(t, "saturated score", CompositeScore(saturated), 100.0, 1e-9)

	approx(t, "zero score", CompositeScore(&models.Metrics{}), 0.0, 1e-9)

	// More expected return never lowers the score
	bumped := *base
	bumped.ExpectedReturn = 40
	if CompositeScore(&bumped) <= CompositeScore(base) {
		t.Errorf("score should increase with expected return: %v vs %v",
			CompositeScore(&bumped), CompositeScore(base))
	}
}
