package marketdata

import (
	"context"
	"testing"
	"time"
)

// fakeFetcher replays canned text blocks per tool name
type fakeFetcher struct {
	responses map[string]string
	calls     []string
}

func (f *fakeFetcher) Call(_ context.Context, tool string, _ map[string]interface{}) (string, error) {
	f.calls = append(f.calls, tool)
	return f.responses[tool], nil
}

const quoteBlock = `Latest Quote for AAPL:
Ask Price: $187.80
Bid Price: $187.20
Ask Size: 3
Bid Size: 5`

const contractsBlock = `Symbol: AAPL250822P00180000
Name: AAPL Aug 22 2025 180 Put
Strike Price: $180.00
Expiration Date: 2025-08-22
Open Interest: 320
Close Price: $2.15
-------------------------
Symbol: AAPL250822P00185000
Name: AAPL Aug 22 2025 185 Put
Strike Price: $185.00
Expiration Date: 2025-08-22
Open Interest: None
Close Price: $3.40
-------------------------
Symbol: AAPL250822P00175000
Name: AAPL Aug 22 2025 175 Put
Strike Price: garbage
Expiration Date: 2025-08-22
Close Price: $1.10
-------------------------
Symbol: AAPL250822C00190000
Name: AAPL Aug 22 2025 190 Call
Strike Price: $190.00
Expiration Date: 2025-08-22
Close Price: $4.25`

const snapshotBlock = `Snapshot for AAPL250822P00180000:
Greeks:
  Delta: -0.182
  Gamma: 0.021
  Theta: -0.094
  Vega: 0.110
  Rho: -0.032
Implied Volatility: 34.5%
Latest Quote:
  Bid Price: $2.10
  Ask Price: $2.25
  Bid Size: 12
  Ask Size: 9
Latest Trade:
  Price: $2.18
  Size: 4`

func TestTextProviderStockQuote(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]string{"get_stock_quote": quoteBlock}}
	p := NewTextProvider(fetcher)

	q, err := p.StockQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q == nil {
		t.Fatal("expected a quote")
	}
	if q.Bid != 187.20 || q.Ask != 187.80 {
		t.Errorf("expected bid 187.20 ask 187.80, got %v/%v", q.Bid, q.Ask)
	}
	if q.Symbol != "AAPL" {
		t.Errorf("symbol not echoed back: %q", q.Symbol)
	}
}

func TestTextProviderStockQuoteEmpty(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]string{"get_stock_quote": "  \n "}}
	p := NewTextProvider(fetcher)

	q, err := p.StockQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != nil {
		t.Errorf("expected nil quote for empty response, got %+v", q)
	}
}

func TestParseContractBlocks(t *testing.T) {
	contracts := parseContractBlocks(contractsBlock, "put")

	// The garbage-strike block is dropped, the call is filtered out
	if len(contracts) != 2 {
		t.Fatalf("expected 2 contracts, got %d", len(contracts))
	}

	first := contracts[0]
	if first.Symbol != "AAPL250822P00180000" {
		t.Errorf("unexpected symbol: %s", first.Symbol)
	}
	if first.StrikePrice != 180 || first.ClosePrice != 2.15 || first.OpenInterest != 320 {
		t.Errorf("unexpected fields: %+v", first)
	}
	wantExp := time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)
	if !first.Expiration.Equal(wantExp) {
		t.Errorf("expected expiration %v, got %v", wantExp, first.Expiration)
	}

	// "Open Interest: None" coerces to zero
	if contracts[1].OpenInterest != 0 {
		t.Errorf("expected zero open interest for None, got %d", contracts[1].OpenInterest)
	}
}

func TestParseSnapshotBlock(t *testing.T) {
	snap := parseSnapshotBlock(snapshotBlock)

	if snap.Delta == nil || *snap.Delta != -0.182 {
		t.Errorf("unexpected delta: %v", snap.Delta)
	}
	if snap.ImpliedVolatility == nil || *snap.ImpliedVolatility != 34.5 {
		t.Errorf("unexpected IV: %v", snap.ImpliedVolatility)
	}
	if snap.Bid == nil || *snap.Bid != 2.10 {
		t.Errorf("unexpected bid: %v", snap.Bid)
	}
	if snap.LastPrice == nil || *snap.LastPrice != 2.18 {
		t.Errorf("unexpected last price: %v", snap.LastPrice)
	}
	if snap.LastTradeSize == nil || *snap.LastTradeSize != 4 {
		t.Errorf("unexpected trade size: %v", snap.LastTradeSize)
	}
	if snap.BidSize == nil || *snap.BidSize != 12 {
		t.Errorf("unexpected bid size: %v", snap.BidSize)
	}
}

func TestParseSnapshotBlockPartial(t *testing.T) {
	snap := parseSnapshotBlock("Implied Volatility: 41.0%\nBid Price: $1.05")

	if snap.ImpliedVolatility == nil || *snap.ImpliedVolatility != 41.0 {
		t.Errorf("unexpected IV: %v", snap.ImpliedVolatility)
	}
	if snap.Delta != nil {
		t.Error("delta should stay nil when the provider omits it")
	}
	if snap.LastTradeSize != nil {
		t.Error("trade size should stay nil when the provider omits it")
	}
}

func TestExpirationFromSymbol(t *testing.T) {
	exp, err := ExpirationFromSymbol("AAPL250822P00180000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)
	if !exp.Equal(want) {
		t.Errorf("expected %v, got %v", want, exp)
	}

	if _, err := ExpirationFromSymbol("SHORT"); err == nil {
		t.Error("expected error for short symbol")
	}
}
