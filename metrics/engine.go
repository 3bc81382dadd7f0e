package metrics

import (
	"context"
	"math"

	"putscreenpro/models"
)

// SnapshotSource supplies per-contract Greeks. Absence (nil) means the
// engine falls back to its own estimation path.
type SnapshotSource interface {
	GetGreeksSnapshot(ctx context.Context, symbol string) *models.GreeksSnapshot
}

// Engine computes cash-secured put metrics. Everything below the snapshot
// lookup is a pure function of its inputs: identical inputs always produce
// identical metrics.
type Engine struct {
	snapshots    SnapshotSource
	riskFreeRate float64 // annual, decimal (0.05 = 5%)
}

// NewEngine creates an engine. snapshots may be nil, in which case every
// contract takes the estimation path.
func NewEngine(snapshots SnapshotSource, riskFreeRate float64) *Engine {
	return &Engine{
		snapshots:    snapshots,
		riskFreeRate: riskFreeRate,
	}
}

// Calculate derives the full metric set for one contract. stockPrice is
// the underlying mid, premium the per-share option price, days the DTE.
// When optionSymbol is non-empty the engine asks the snapshot source for
// real Greeks; otherwise, or when the source has nothing, implied
// volatility is estimated from moneyness and pitm from Black-Scholes.
func (e *Engine) Calculate(ctx context.Context, stockPrice, strikePrice, premium float64, days int, optionSymbol string) *models.Metrics {
	// Basic return arithmetic
	cashRequired := strikePrice * 100
	premiumReceived := premium * 100
	periodReturn := (premiumReceived / cashRequired) * 100
	annualizedReturn := periodReturn * (365 / math.Max(float64(days), 1))
	distanceToStrike := ((stockPrice - strikePrice) / stockPrice) * 100

	var snap *models.GreeksSnapshot
	if optionSymbol != "" && e.snapshots != nil {
		snap = e.snapshots.GetGreeksSnapshot(ctx, optionSymbol)
	}

	// Delta is the industry proxy for assignment probability; use it when
	// the provider has both delta and IV, estimate otherwise.
	var pitm, impliedVol float64
	var dataSource string
	if snap != nil && snap.Delta != nil && snap.ImpliedVolatility != nil {
		pitm = math.Abs(*snap.Delta) * 100
		impliedVol = *snap.ImpliedVolatility / 100
		dataSource = models.SourceReal
	} else {
		impliedVol = EstimateImpliedVolatility(stockPrice, strikePrice)
		pitm = PITMBlackScholes(stockPrice, strikePrice, days, impliedVol, e.riskFreeRate)
		dataSource = models.SourceEstimated
	}

	var delta, gamma, theta, vega, rho float64
	var bid, ask, lastPrice float64
	var volume, bidSize, askSize int
	lastPrice = premium
	if snap != nil {
		delta = models.FloatOr(snap.Delta, 0)
		gamma = models.FloatOr(snap.Gamma, 0)
		theta = models.FloatOr(snap.Theta, 0)
		vega = models.FloatOr(snap.Vega, 0)
		rho = models.FloatOr(snap.Rho, 0)
		bid = models.FloatOr(snap.Bid, 0)
		ask = models.FloatOr(snap.Ask, 0)
		lastPrice = models.FloatOr(snap.LastPrice, premium)
		volume = models.IntOr(snap.LastTradeSize, 0)
		bidSize = models.IntOr(snap.BidSize, 0)
		askSize = models.IntOr(snap.AskSize, 0)
	}

	expectedReturn := ProbabilityWeightedReturn(premium, strikePrice, days, pitm)
	volRiskPremium := VolatilityRiskPremium(impliedVol*100, gamma)
	sharpe := e.SharpeRatio(expectedReturn, stockPrice, strikePrice, days, impliedVol)
	thetaEff := ThetaEfficiency(theta, premium, days)

	m := &models.Metrics{
		CashRequired:     cashRequired,
		PremiumReceived:  premiumReceived,
		PeriodReturn:     periodReturn,
		AnnualizedReturn: annualizedReturn,
		PITM:             pitm,
		DistanceToStrike: distanceToStrike,

		ImpliedVolatility: impliedVol * 100,
		Delta:             delta,
		Gamma:             gamma,
		Theta:             theta,
		Vega:              vega,
		Rho:               rho,

		Bid:       bid,
		Ask:       ask,
		LastPrice: lastPrice,
		Volume:    volume,
		BidSize:   bidSize,
		AskSize:   askSize,

		ExpectedReturn:        expectedReturn,
		VolatilityRiskPremium: volRiskPremium,
		SharpeRatio:           sharpe,
		ThetaEfficiency:       thetaEff,

		DataSource: dataSource,
	}
	m.AdvancedScore = CompositeScore(m)

	return m
}

// EstimateImpliedVolatility returns a moneyness-banded IV estimate as a
// decimal. Deliberately coarse: the real solve (Newton-Raphson against the
// pricing model) is out of scope, the bands track typical equity vols.
func EstimateImpliedVolatility(stockPrice, strikePrice float64) float64 {
	moneyness := stockPrice / strikePrice
	switch {
	case moneyness > 1.1: // deep OTM put
		return 0.25
	case moneyness > 1.05: // moderately OTM
		return 0.35
	case moneyness > 0.95: // near the money
		return 0.45
	default: // ITM put
		return 0.55
	}
}

// PITMBlackScholes returns the probability (0-100) that a put finishes in
// the money: N(-d2) under Black-Scholes. Results are clamped to
// [0.1, 99.9]; degenerate inputs fall through to a distance-banded
// heuristic.
func PITMBlackScholes(stockPrice, strikePrice float64, days int, volatility, riskFreeRate float64) float64 {
	if days <= 0 {
		// Option has expired
		if stockPrice < strikePrice {
			return 100.0
		}
		return 0.0
	}

	T := float64(days) / 365.0
	if T <= 0 || volatility <= 0 {
		return 50.0
	}

	if stockPrice <= 0 || strikePrice <= 0 {
		return distanceBandPITM(stockPrice, strikePrice)
	}

	d2 := (math.Log(stockPrice/strikePrice) + (riskFreeRate-0.5*volatility*volatility)*T) /
		(volatility * math.Sqrt(T))
	if math.IsNaN(d2) || math.IsInf(d2, 0) {
		return distanceBandPITM(stockPrice, strikePrice)
	}

	pitm := normCDF(-d2) * 100
	return math.Max(0.1, math.Min(99.9, pitm))
}

// distanceBandPITM is the last-resort heuristic when the closed form
// cannot be evaluated.
func distanceBandPITM(stockPrice, strikePrice float64) float64 {
	if strikePrice == 0 {
		return 50.0
	}
	distancePct := ((stockPrice - strikePrice) / strikePrice) * 100
	switch {
	case distancePct > 20:
		return 5.0
	case distancePct > 10:
		return 15.0
	case distancePct > 0:
		return 25.0
	default:
		return 50.0
	}
}

// ProbabilityWeightedReturn combines the two terminal outcomes of a
// cash-secured put into an annualized expected return percentage.
//
// The assigned branch keeps the premium only; the model does not net out
// the unrealized stock loss below strike.
func ProbabilityWeightedReturn(premium, strikePrice float64, days int, pitm float64) float64 {
	cashRequired := strikePrice * 100
	premiumReceived := premium * 100
	pitmDecimal := pitm / 100

	// Scenario 1: option expires worthless, seller keeps the premium
	profitExpireWorthless := premiumReceived
	probExpireWorthless := 1 - pitmDecimal

	// Scenario 2: assignment; premium is kept, stock is put to the seller
	profitIfAssigned := premiumReceived

	expectedProfit := profitExpireWorthless*probExpireWorthless + profitIfAssigned*pitmDecimal

	periodReturn := expectedProfit / cashRequired
	annualized := periodReturn * (365 / math.Max(float64(days), 1))
	return annualized * 100
}

// VolatilityRiskPremium rewards implied volatility above a 20% baseline
// and penalizes gamma exposure. ivPct is a percentage.
func VolatilityRiskPremium(ivPct, gamma float64) float64 {
	volPremium := math.Max(0, (ivPct-20)*2)
	gammaPenalty := math.Abs(gamma) * 50
	return math.Max(0, volPremium-gammaPenalty)
}

// SharpeRatio is the risk-adjusted return of the strategy. Strategy
// volatility is modeled from the underlying's IV, scaled down for the
// put's limited upside and out for time and moneyness.
func (e *Engine) SharpeRatio(expectedReturn, stockPrice, strikePrice float64, days int, impliedVol float64) float64 {
	timeFactor := math.Sqrt(float64(days) / 365)
	moneynessFactor := math.Abs((stockPrice - strikePrice) / stockPrice)

	strategyVol := impliedVol * timeFactor * (0.5 + moneynessFactor)
	if strategyVol <= 0 {
		return 0
	}

	riskFreePct := e.riskFreeRate * 100
	return math.Max(0, (expectedReturn-riskFreePct)/(strategyVol*100))
}

// ThetaEfficiency scores time-decay capture per dollar of premium at risk,
// normalized to 0-100.
func ThetaEfficiency(theta, premium float64, days int) float64 {
	if premium <= 0 || days <= 0 {
		return 0
	}

	dailyDecay := math.Abs(theta) // theta is negative for sold puts
	efficiency := (dailyDecay * float64(days)) / premium
	return math.Min(100, efficiency*1000)
}

// Composite score caps: each component saturates at its cap before
// weighting.
const (
	returnCap  = 50.0  // expected return %
	sharpeCap  = 2.0   // Sharpe ratio
	volCap     = 20.0  // volatility risk premium points
	thetaCap   = 100.0 // theta efficiency points
	weightRet  = 30.0
	weightShrp = 25.0
	weightVol  = 20.0
	weightThta = 25.0
)

// CompositeScore folds the four advanced metrics into a 0-100 ranking
// score, weighted 30/25/20/25.
func CompositeScore(m *models.Metrics) float64 {
	returnComponent := math.Min(1.0, m.ExpectedReturn/returnCap)
	sharpeComponent := math.Min(1.0, m.SharpeRatio/sharpeCap)
	volComponent := math.Min(1.0, m.VolatilityRiskPremium/volCap)
	thetaComponent := math.Min(1.0, m.ThetaEfficiency/thetaCap)

	return returnComponent*weightRet +
		sharpeComponent*weightShrp +
		volComponent*weightVol +
		thetaComponent*weightThta
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
