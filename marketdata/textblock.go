package marketdata

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"putscreenpro/models"
)

// TextFetcher is a transport that answers tool calls with human-readable
// text blocks (the MCP-style provider surface). The parsing of those blocks
// is confined to this adapter; nothing outside marketdata ever sees them.
type TextFetcher interface {
	Call(ctx context.Context, tool string, params map[string]interface{}) (string, error)
}

// TextProvider adapts a text-block transport to the typed Provider
// interface.
type TextProvider struct {
	fetcher TextFetcher
}

// NewTextProvider wraps a text-block transport.
func NewTextProvider(fetcher TextFetcher) *TextProvider {
	return &TextProvider{fetcher: fetcher}
}

const contractSeparator = "-------------------------"

// StockQuote fetches and parses a stock quote block.
func (p *TextProvider) StockQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	text, err := p.fetcher.Call(ctx, "get_stock_quote", map[string]interface{}{
		"symbol": symbol,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	quote := &models.Quote{Symbol: symbol}
	found := false
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.Contains(line, "Ask Price:"):
			if v, ok := parseDollarField(line); ok {
				quote.Ask = v
				found = true
			} else {
				log.Printf("⚠️  Could not parse price from line: %s", strings.TrimSpace(line))
			}
		case strings.Contains(line, "Bid Price:"):
			if v, ok := parseDollarField(line); ok {
				quote.Bid = v
				found = true
			} else {
				log.Printf("⚠️  Could not parse price from line: %s", strings.TrimSpace(line))
			}
		}
	}

	if !found {
		return nil, nil
	}
	return quote, nil
}

// OptionContracts fetches and parses an option chain response. Malformed
// contract blocks are skipped silently, they never abort the batch.
func (p *TextProvider) OptionContracts(ctx context.Context, req ContractsRequest) ([]models.OptionContract, error) {
	params := map[string]interface{}{
		"underlying_symbol": req.UnderlyingSymbol,
	}
	if req.ExpirationDate != nil {
		params["expiration_date"] = req.ExpirationDate.Format("2006-01-02")
	} else if req.ExpirationYear != 0 {
		params["expiration_month"] = int(req.ExpirationMonth)
		params["expiration_year"] = req.ExpirationYear
	}
	if req.Type != "" {
		params["type"] = req.Type
	}
	if req.Status != "" {
		params["status"] = req.Status
	}
	if req.Limit > 0 {
		params["limit"] = req.Limit
	}

	text, err := p.fetcher.Call(ctx, "get_option_contracts", params)
	if err != nil {
		return nil, err
	}

	return parseContractBlocks(text, req.Type), nil
}

// OptionSnapshot fetches and parses a Greeks snapshot block. Returns
// (nil, nil) when the provider has nothing for the identifier.
func (p *TextProvider) OptionSnapshot(ctx context.Context, symbol string) (*models.GreeksSnapshot, error) {
	text, err := p.fetcher.Call(ctx, "get_option_snapshot", map[string]interface{}{
		"symbol_or_symbols": symbol,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	return parseSnapshotBlock(text), nil
}

// parseContractBlocks splits a chain response on the provider's separator
// and extracts one contract per block.
func parseContractBlocks(text, contractType string) []models.OptionContract {
	typeMarker := "Put"
	if strings.EqualFold(contractType, "call") {
		typeMarker = "Call"
	}

	var contracts []models.OptionContract
	for _, block := range strings.Split(text, contractSeparator) {
		if !strings.Contains(block, "Symbol:") {
			continue
		}
		if contractType != "" && !strings.Contains(block, typeMarker) {
			continue
		}

		var c models.OptionContract
		for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "Symbol:"):
				c.Symbol = fieldValue(line)
			case strings.HasPrefix(line, "Name:"):
				c.Name = fieldValue(line)
			case strings.HasPrefix(line, "Strike Price:"):
				if v, ok := parseDollarField(line); ok {
					c.StrikePrice = v
				}
			case strings.HasPrefix(line, "Expiration Date:"):
				if exp, err := time.ParseInLocation("2006-01-02", fieldValue(line), time.UTC); err == nil {
					c.Expiration = exp
				}
			case strings.HasPrefix(line, "Open Interest:"):
				raw := fieldValue(line)
				if raw != "None" {
					if oi, err := strconv.Atoi(raw); err == nil {
						c.OpenInterest = oi
					}
				}
			case strings.HasPrefix(line, "Close Price:"):
				if v, ok := parseDollarField(line); ok {
					c.ClosePrice = v
				}
			}
		}

		// A contract without a positive strike is dropped
		if c.StrikePrice > 0 {
			contracts = append(contracts, c)
		}
	}

	return contracts
}

// parseSnapshotBlock extracts Greeks, IV and market data lines. Any field
// the provider omits stays nil.
func parseSnapshotBlock(text string) *models.GreeksSnapshot {
	snap := &models.GreeksSnapshot{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.Contains(line, "Delta:"):
			if v, ok := parseNumberAfter(line, "Delta:"); ok {
				snap.Delta = models.FloatPtr(v)
			} else {
				log.Printf("⚠️  Could not parse Delta from line: %s", line)
			}
		case strings.Contains(line, "Gamma:"):
			if v, ok := parseNumberAfter(line, "Gamma:"); ok {
				snap.Gamma = models.FloatPtr(v)
			}
		case strings.Contains(line, "Theta:"):
			if v, ok := parseNumberAfter(line, "Theta:"); ok {
				snap.Theta = models.FloatPtr(v)
			}
		case strings.Contains(line, "Vega:"):
			if v, ok := parseNumberAfter(line, "Vega:"); ok {
				snap.Vega = models.FloatPtr(v)
			}
		case strings.Contains(line, "Rho:"):
			if v, ok := parseNumberAfter(line, "Rho:"); ok {
				snap.Rho = models.FloatPtr(v)
			}
		case strings.Contains(line, "Implied Volatility:"):
			if v, ok := parseNumberAfter(line, "Implied Volatility:"); ok {
				snap.ImpliedVolatility = models.FloatPtr(v)
			}
		case strings.Contains(line, "Bid Price:"):
			if v, ok := parseNumberAfter(line, "Bid Price:"); ok {
				snap.Bid = models.FloatPtr(v)
			}
		case strings.Contains(line, "Ask Price:"):
			if v, ok := parseNumberAfter(line, "Ask Price:"); ok {
				snap.Ask = models.FloatPtr(v)
			}
		case strings.Contains(line, "Bid Size:"):
			if v, ok := parseNumberAfter(line, "Bid Size:"); ok {
				snap.BidSize = models.IntPtr(int(v))
			}
		case strings.Contains(line, "Ask Size:"):
			if v, ok := parseNumberAfter(line, "Ask Size:"); ok {
				snap.AskSize = models.IntPtr(int(v))
			}
		case strings.HasPrefix(line, "Price:"):
			// Trade price; the bid/ask variants are handled above
			if v, ok := parseNumberAfter(line, "Price:"); ok {
				snap.LastPrice = models.FloatPtr(v)
			}
		case strings.Contains(line, "Size:"):
			// Trade size, the volume indicator
			if v, ok := parseNumberAfter(line, "Size:"); ok {
				snap.LastTradeSize = models.IntPtr(int(v))
			}
		}
	}
	return snap
}

// fieldValue returns the text after the first ": " on a "Key: value" line.
func fieldValue(line string) string {
	_, value, found := strings.Cut(line, ": ")
	if !found {
		return ""
	}
	return strings.TrimSpace(value)
}

// parseDollarField extracts the number after the first "$" on a line.
func parseDollarField(line string) (float64, bool) {
	_, after, found := strings.Cut(line, "$")
	if !found {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(after), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseNumberAfter extracts the number following marker, tolerating "$" and
// "%" decoration.
func parseNumberAfter(line, marker string) (float64, bool) {
	_, after, found := strings.Cut(line, marker)
	if !found {
		return 0, false
	}
	raw := strings.TrimSpace(after)
	raw = strings.TrimPrefix(raw, "$")
	raw = strings.TrimSuffix(raw, "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
