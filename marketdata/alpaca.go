package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"putscreenpro/models"
)

// AlpacaClient talks to the Alpaca trading and market-data REST APIs using
// their typed JSON schemas.
type AlpacaClient struct {
	tradingURL string
	dataURL    string
	keyID      string
	secretKey  string
	client     *http.Client
}

// NewAlpacaClient creates a new Alpaca REST client
func NewAlpacaClient(tradingURL, dataURL, keyID, secretKey string) *AlpacaClient {
	// Configure custom HTTP transport for optimal connection pooling
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false,
	}

	return &AlpacaClient{
		tradingURL: tradingURL,
		dataURL:    dataURL,
		keyID:      keyID,
		secretKey:  secretKey,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

// alpacaQuoteResponse is the latest-quote schema of the data API.
type alpacaQuoteResponse struct {
	Symbol string `json:"symbol"`
	Quote  struct {
		AskPrice float64 `json:"ap"`
		BidPrice float64 `json:"bp"`
		AskSize  int     `json:"as"`
		BidSize  int     `json:"bs"`
	} `json:"quote"`
}

// alpacaContract is one contract row of the trading API option-chain
// schema. Numeric fields arrive as strings.
type alpacaContract struct {
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	ExpirationDate string  `json:"expiration_date"`
	StrikePrice    string  `json:"strike_price"`
	ClosePrice     *string `json:"close_price"`
	OpenInterest   *string `json:"open_interest"`
}

type alpacaContractsResponse struct {
	OptionContracts []alpacaContract `json:"option_contracts"`
	NextPageToken   *string          `json:"next_page_token"`
}

// alpacaSnapshot is the option snapshot schema of the data API.
type alpacaSnapshot struct {
	Greeks *struct {
		Delta float64 `json:"delta"`
		Gamma float64 `json:"gamma"`
		Theta float64 `json:"theta"`
		Vega  float64 `json:"vega"`
		Rho   float64 `json:"rho"`
	} `json:"greeks"`
	ImpliedVolatility *float64 `json:"impliedVolatility"`
	LatestQuote       *struct {
		AskPrice float64 `json:"ap"`
		BidPrice float64 `json:"bp"`
		AskSize  int     `json:"as"`
		BidSize  int     `json:"bs"`
	} `json:"latestQuote"`
	LatestTrade *struct {
		Price float64 `json:"p"`
		Size  int     `json:"s"`
	} `json:"latestTrade"`
}

type alpacaSnapshotsResponse struct {
	Snapshots map[string]alpacaSnapshot `json:"snapshots"`
}

// StockQuote fetches the latest quote for symbol.
func (a *AlpacaClient) StockQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	endpoint := fmt.Sprintf("%s/v2/stocks/%s/quotes/latest", a.dataURL, url.PathEscape(symbol))

	var resp alpacaQuoteResponse
	if err := a.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	if resp.Quote.BidPrice == 0 && resp.Quote.AskPrice == 0 {
		return nil, nil
	}

	return &models.Quote{
		Symbol: symbol,
		Bid:    resp.Quote.BidPrice,
		Ask:    resp.Quote.AskPrice,
	}, nil
}

// OptionContracts fetches the option chain slice described by req. Rows
// with unparseable strikes are dropped, a malformed row never fails the
// batch.
func (a *AlpacaClient) OptionContracts(ctx context.Context, req ContractsRequest) ([]models.OptionContract, error) {
	params := url.Values{}
	params.Set("underlying_symbols", req.UnderlyingSymbol)
	if req.ExpirationDate != nil {
		params.Set("expiration_date", req.ExpirationDate.Format("2006-01-02"))
	} else if req.ExpirationYear != 0 {
		first := time.Date(req.ExpirationYear, req.ExpirationMonth, 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 1, -1)
		params.Set("expiration_date_gte", first.Format("2006-01-02"))
		params.Set("expiration_date_lte", last.Format("2006-01-02"))
	}
	if req.Type != "" {
		params.Set("type", req.Type)
	}
	if req.Status != "" {
		params.Set("status", req.Status)
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}

	endpoint := fmt.Sprintf("%s/v2/options/contracts?%s", a.tradingURL, params.Encode())

	var resp alpacaContractsResponse
	if err := a.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	contracts := make([]models.OptionContract, 0, len(resp.OptionContracts))
	for _, row := range resp.OptionContracts {
		strike, err := strconv.ParseFloat(row.StrikePrice, 64)
		if err != nil || strike <= 0 {
			continue
		}

		c := models.OptionContract{
			Symbol:      row.Symbol,
			Name:        row.Name,
			StrikePrice: strike,
		}

		if row.ClosePrice != nil {
			if close, err := strconv.ParseFloat(*row.ClosePrice, 64); err == nil {
				c.ClosePrice = close
			}
		}
		if row.OpenInterest != nil {
			if oi, err := strconv.Atoi(*row.OpenInterest); err == nil {
				c.OpenInterest = oi
			}
		}
		if exp, err := time.ParseInLocation("2006-01-02", row.ExpirationDate, time.UTC); err == nil {
			c.Expiration = exp
		}

		contracts = append(contracts, c)
	}

	return contracts, nil
}

// OptionSnapshot fetches Greeks and market data for one contract symbol.
// Returns (nil, nil) when the provider has nothing for the identifier.
func (a *AlpacaClient) OptionSnapshot(ctx context.Context, symbol string) (*models.GreeksSnapshot, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	endpoint := fmt.Sprintf("%s/v1beta1/options/snapshots?%s", a.dataURL, params.Encode())

	var resp alpacaSnapshotsResponse
	if err := a.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	raw, ok := resp.Snapshots[symbol]
	if !ok {
		return nil, nil
	}

	snap := &models.GreeksSnapshot{}
	if raw.Greeks != nil {
		snap.Delta = models.FloatPtr(raw.Greeks.Delta)
		snap.Gamma = models.FloatPtr(raw.Greeks.Gamma)
		snap.Theta = models.FloatPtr(raw.Greeks.Theta)
		snap.Vega = models.FloatPtr(raw.Greeks.Vega)
		snap.Rho = models.FloatPtr(raw.Greeks.Rho)
	}
	if raw.ImpliedVolatility != nil {
		// Provider reports a decimal, snapshots carry percent
		snap.ImpliedVolatility = models.FloatPtr(*raw.ImpliedVolatility * 100)
	}
	if raw.LatestQuote != nil {
		snap.Bid = models.FloatPtr(raw.LatestQuote.BidPrice)
		snap.Ask = models.FloatPtr(raw.LatestQuote.AskPrice)
		snap.BidSize = models.IntPtr(raw.LatestQuote.BidSize)
		snap.AskSize = models.IntPtr(raw.LatestQuote.AskSize)
	}
	if raw.LatestTrade != nil {
		snap.LastPrice = models.FloatPtr(raw.LatestTrade.Price)
		snap.LastTradeSize = models.IntPtr(raw.LatestTrade.Size)
	}

	return snap, nil
}

// getJSON performs an authenticated GET and decodes the JSON body.
func (a *AlpacaClient) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", a.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", a.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// No data for the identifier; callers treat the zero value as absent
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding provider response: %w", err)
	}
	return nil
}
