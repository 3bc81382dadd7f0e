package marketdata

import (
	"context"
	"fmt"
	"time"

	"putscreenpro/models"
)

// ContractsRequest narrows an option-chain query. Either ExpirationDate or
// an ExpirationMonth/ExpirationYear window is set, never both.
type ContractsRequest struct {
	UnderlyingSymbol string
	ExpirationDate   *time.Time
	ExpirationMonth  time.Month
	ExpirationYear   int
	Type             string // "put" or "call"
	Status           string
	Limit            int
}

// Provider is the upstream market data source. Implementations must echo
// the symbol back unchanged, return parseable numeric fields, and signal a
// missing snapshot with (nil, nil) rather than an error.
type Provider interface {
	StockQuote(ctx context.Context, symbol string) (*models.Quote, error)
	OptionContracts(ctx context.Context, req ContractsRequest) ([]models.OptionContract, error)
	OptionSnapshot(ctx context.Context, symbol string) (*models.GreeksSnapshot, error)
}

// ExpirationFromSymbol extracts the YYMMDD expiration encoded in an OCC
// option symbol, e.g. AAPL250822P00150000.
func ExpirationFromSymbol(symbol string) (time.Time, error) {
	if len(symbol) < 15 {
		return time.Time{}, fmt.Errorf("option symbol too short: %q", symbol)
	}

	datePart := symbol[len(symbol)-15 : len(symbol)-9]
	exp, err := time.ParseInLocation("060102", datePart, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing expiration from symbol %q: %w", symbol, err)
	}
	return exp, nil
}
