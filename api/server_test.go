package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"putscreenpro/models"
	"putscreenpro/realtime"
	"putscreenpro/validation"
)

type fakeRunner struct {
	lastReq models.ScreeningRequest
	results []models.ScreeningResult
	err     error
}

func (f *fakeRunner) Screen(_ context.Context, req models.ScreeningRequest) ([]models.ScreeningResult, error) {
	f.lastReq = req
	return f.results, f.err
}

type fakeCache struct {
	entries int
	cleared bool
}

func (f *fakeCache) CacheLen() int { return f.entries }
func (f *fakeCache) ClearCache()   { f.cleared = true; f.entries = 0 }

func newTestServer(runner *fakeRunner, cache *fakeCache) http.Handler {
	broker := realtime.NewBroker()
	return NewServer(runner, cache, broker, nil).Routes()
}

func TestHandleScreen(t *testing.T) {
	runner := &fakeRunner{results: []models.ScreeningResult{
		{Symbol: "AAPL", Score: 72.5},
	}}
	handler := newTestServer(runner, &fakeCache{})

	body := `{"symbols":["AAPL"],"max_dte":20,"parallel":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/screen", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Results []models.ScreeningResult `json:"results"`
		Count   int                      `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || resp.Results[0].Symbol != "AAPL" {
		t.Errorf("response = %+v", resp)
	}
	if runner.lastReq.Parallel == nil || !*runner.lastReq.Parallel || runner.lastReq.MaxDTE != 20 {
		t.Errorf("request not forwarded: %+v", runner.lastReq)
	}
}

func TestHandleScreenValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"symbols":`},
		{"dte out of range", `{"max_dte":500}`},
		{"pitm out of range", `{"max_pitm":150}`},
		{"negative open interest", `{"min_open_interest":-1}`},
		{"oversized symbol", `{"symbols":["THISISWAYTOOLONG"]}`},
		{"non-alphabetic symbol", `{"symbols":["AAPL; DROP"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(&fakeRunner{}, &fakeCache{})
			req := httptest.NewRequest(http.MethodPost, "/api/screen", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleScreenUnusableRequest(t *testing.T) {
	runner := &fakeRunner{err: validation.Errorf(validation.KindEmptySymbol, "no symbols to screen")}
	handler := newTestServer(runner, &fakeCache{})

	req := httptest.NewRequest(http.MethodPost, "/api/screen", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestHandleScreenEmptyResults(t *testing.T) {
	handler := newTestServer(&fakeRunner{}, &fakeCache{})

	req := httptest.NewRequest(http.MethodPost, "/api/screen", strings.NewReader(`{"symbols":["AAPL"]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// Empty must encode as [], not null
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("body = %s, want empty results array", rec.Body.String())
	}
}

func TestCacheEndpoints(t *testing.T) {
	cache := &fakeCache{entries: 7}
	handler := newTestServer(&fakeRunner{}, cache)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cache", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"entries":7`) {
		t.Errorf("cache stats: code %d body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cache/clear", nil))
	if rec.Code != http.StatusOK || !cache.cleared {
		t.Errorf("cache clear: code %d cleared %v", rec.Code, cache.cleared)
	}
	if !strings.Contains(rec.Body.String(), `"cleared":7`) {
		t.Errorf("clear body = %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	handler := newTestServer(&fakeRunner{}, &fakeCache{entries: 3})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
