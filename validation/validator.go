package validation

import (
	"log"
	"math"

	"putscreenpro/models"
)

// Plausibility thresholds. Breaches are logged as warnings, not rejected:
// a wide spread or an extreme return is suspicious but not invalid.
const (
	wideSpreadPct       = 10.0
	extremeAnnualReturn = 1000.0
)

// ValidateQuote checks a stock quote for structural and range errors and
// returns it unchanged when valid.
func ValidateQuote(q *models.Quote) (*models.Quote, error) {
	if q == nil {
		return nil, Errorf(KindQuoteMissingField, "empty quote data received")
	}

	if q.Bid == 0 {
		return nil, Errorf(KindQuoteMissingField, "missing required field in quote: bid")
	}
	if q.Ask == 0 {
		return nil, Errorf(KindQuoteMissingField, "missing required field in quote: ask")
	}
	if q.Bid < 0 || math.IsNaN(q.Bid) || math.IsInf(q.Bid, 0) {
		return nil, Errorf(KindQuoteInvalidPrice, "invalid bid price: %v", q.Bid)
	}
	if q.Ask < 0 || math.IsNaN(q.Ask) || math.IsInf(q.Ask, 0) {
		return nil, Errorf(KindQuoteInvalidPrice, "invalid ask price: %v", q.Ask)
	}

	// Derive mid if the parser did not
	if q.Mid == 0 {
		q.Mid = (q.Bid + q.Ask) / 2
	}

	// Wide spread is a plausibility signal only
	spreadPct := (q.Ask - q.Bid) / q.Mid * 100
	if spreadPct > wideSpreadPct {
		log.Printf("⚠️  Wide bid-ask spread detected for %s: %.1f%%", q.Symbol, spreadPct)
	}

	return q, nil
}

// ValidateContract checks an option contract for structural and range
// errors and returns it unchanged when valid.
func ValidateContract(o *models.OptionContract) (*models.OptionContract, error) {
	if o == nil {
		return nil, Errorf(KindOptionMissingField, "empty option data received")
	}

	if o.Symbol == "" {
		return nil, Errorf(KindOptionMissingField, "missing required field in option: symbol")
	}
	if o.StrikePrice <= 0 {
		return nil, Errorf(KindOptionInvalidStrike, "invalid strike price: %v", o.StrikePrice)
	}
	if o.ClosePrice <= 0 {
		return nil, Errorf(KindOptionInvalidPrice, "invalid option price: %v", o.ClosePrice)
	}
	if o.OpenInterest < 0 {
		return nil, Errorf(KindOptionInvalidOpenInterest, "invalid open interest: %v", o.OpenInterest)
	}
	if len(o.Symbol) < 10 {
		return nil, Errorf(KindOptionInvalidSymbol, "invalid option symbol: %s", o.Symbol)
	}

	return o, nil
}

// ValidateMetrics checks computed metrics before they reach the filter
// stage and returns them unchanged when valid.
func ValidateMetrics(m *models.Metrics) (*models.Metrics, error) {
	if m == nil {
		return nil, Errorf(KindMetricsMissingField, "empty metrics data")
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"annualized_return", m.AnnualizedReturn},
		{"pitm", m.PITM},
		{"cash_required", m.CashRequired},
		{"premium_received", m.PremiumReceived},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return nil, Errorf(KindMetricsInvalidType, "invalid metric value for %s: %v", f.name, f.value)
		}
	}

	// Sanity checks
	if m.AnnualizedReturn < 0 || m.AnnualizedReturn > extremeAnnualReturn {
		log.Printf("⚠️  Unusual annualized return detected: %.1f%%", m.AnnualizedReturn)
	}

	if m.PITM < 0 || m.PITM > 100 {
		return nil, Errorf(KindMetricsPitmOutOfRange, "PITM out of range: %v", m.PITM)
	}

	if m.CashRequired <= 0 {
		return nil, Errorf(KindMetricsInvalidCashRequired, "invalid cash required: %v", m.CashRequired)
	}

	return m, nil
}
