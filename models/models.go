package models

import "time"

// Quote is the current market for an underlying symbol.
// Mid is derived as (Bid+Ask)/2 and is the stock price every downstream
// calculation uses. Quotes are created fresh per gateway call and cached
// for 30 seconds.
type Quote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Mid    float64 `json:"mid_price"`
}

// OptionContract is a single tradable put contract as parsed from the
// provider. Immutable once parsed.
//
// Key Fields:
//   - Symbol: provider-assigned identifier encoding underlying, expiration,
//     type and strike (e.g. AAPL250822P00150000)
//   - ClosePrice: last close of the option, used as the premium estimate
//   - OpenInterest: outstanding contracts at this strike/expiration
type OptionContract struct {
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name,omitempty"`
	StrikePrice  float64   `json:"strike_price"`
	ClosePrice   float64   `json:"close_price"`
	OpenInterest int       `json:"open_interest"`
	Expiration   time.Time `json:"expiration_date"`
}

// GreeksSnapshot carries the per-contract Greeks and market data the
// provider may or may not have. Every field is optional: nil means the
// provider omitted it, which is different from a real zero. Use the ValueOr
// helpers when a zero default is acceptable for aggregation.
type GreeksSnapshot struct {
	Delta             *float64 `json:"delta,omitempty"`
	Gamma             *float64 `json:"gamma,omitempty"`
	Theta             *float64 `json:"theta,omitempty"`
	Vega              *float64 `json:"vega,omitempty"`
	Rho               *float64 `json:"rho,omitempty"`
	ImpliedVolatility *float64 `json:"implied_volatility,omitempty"` // percent

	Bid           *float64 `json:"bid,omitempty"`
	Ask           *float64 `json:"ask,omitempty"`
	LastPrice     *float64 `json:"last_price,omitempty"`
	LastTradeSize *int     `json:"last_trade_size,omitempty"`
	BidSize       *int     `json:"bid_size,omitempty"`
	AskSize       *int     `json:"ask_size,omitempty"`
}

// Data source tags for Metrics. Real means pitm came from a provider delta,
// Estimated means the moneyness/Black-Scholes path produced it.
const (
	SourceReal      = "Real"
	SourceEstimated = "Estimated"
)

// Metrics is the full set of derived numbers for one (contract, quote)
// pair. Computed once, validated, never mutated afterwards. Return fields
// are percentages, ImpliedVolatility is a percentage, PITM is 0-100.
type Metrics struct {
	CashRequired     float64 `json:"cash_required"`
	PremiumReceived  float64 `json:"premium_received"`
	PeriodReturn     float64 `json:"period_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	PITM             float64 `json:"pitm"`
	DistanceToStrike float64 `json:"distance_to_strike"`

	ImpliedVolatility float64 `json:"implied_volatility"`
	Delta             float64 `json:"delta"`
	Gamma             float64 `json:"gamma"`
	Theta             float64 `json:"theta"`
	Vega              float64 `json:"vega"`
	Rho               float64 `json:"rho"`

	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	LastPrice float64 `json:"last_price"`
	Volume    int     `json:"volume"`
	BidSize   int     `json:"bid_size"`
	AskSize   int     `json:"ask_size"`

	ExpectedReturn        float64 `json:"expected_return"`
	VolatilityRiskPremium float64 `json:"volatility_risk_premium"`
	SharpeRatio           float64 `json:"sharpe_ratio"`
	ThetaEfficiency       float64 `json:"theta_efficiency"`
	AdvancedScore         float64 `json:"advanced_score"`

	DataSource string `json:"data_source"` // Real or Estimated
}

// ScreeningResult is one surviving contract with everything needed to rank
// and display it. Score and ExpectedReturn duplicate the metric fields as
// explicit sort keys.
type ScreeningResult struct {
	Symbol     string         `json:"symbol"`
	StockPrice float64        `json:"stock_price"`
	Quote      Quote          `json:"quote"`
	Contract   OptionContract `json:"contract"`
	DTE        int            `json:"dte"`
	Metrics    Metrics        `json:"metrics"`

	Score          float64 `json:"score"`
	ExpectedReturn float64 `json:"expected_return"`
}

// ScreeningRequest is the screening input consumed from the API layer.
// Parallel is a pointer so an absent field falls back to the configured
// default rather than forcing sequential mode.
type ScreeningRequest struct {
	Symbols         []string `json:"symbols"`
	MaxDTE          int      `json:"max_dte"`
	MaxPITM         float64  `json:"max_pitm"`
	MinOpenInterest int      `json:"min_open_interest"`
	MinVolume       int      `json:"min_volume"`
	Parallel        *bool    `json:"parallel,omitempty"`
}

// FloatOr dereferences an optional float, falling back to def.
func FloatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// IntOr dereferences an optional int, falling back to def.
func IntOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// FloatPtr returns a pointer to v; used by parsers and tests.
func FloatPtr(v float64) *float64 {
	return &v
}

// IntPtr returns a pointer to v; used by parsers and tests.
func IntPtr(v int) *int {
	return &v
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}
