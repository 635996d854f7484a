package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ledgergate/ledgergate/internal/auth"
	"github.com/ledgergate/ledgergate/internal/config"
	"github.com/ledgergate/ledgergate/internal/governor"
	"github.com/ledgergate/ledgergate/internal/nl2sql"
	"github.com/ledgergate/ledgergate/internal/sqlguard"
)

type fakeTranslator struct {
	result  nl2sql.Result
	err     error
	lastReq nl2sql.Request
}

func (f *fakeTranslator) Translate(_ context.Context, req nl2sql.Request) (nl2sql.Result, error) {
	f.lastReq = req
	return f.result, f.err
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("ledgergate-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func postJSON(h http.Handler, path, tenant, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAskReturnsGovernedRows(t *testing.T) {
	gov := &fakeGovernor{response: governor.Response{
		Columns:  []string{"total"},
		Rows:     [][]any{{42.0}},
		CacheHit: true,
		CacheAge: 90 * time.Second,
	}}
	h := NewHandler(testConfig(t), Dependencies{Governor: gov})

	rr := postJSON(h, "/v1/ask", "acme", `{"question":"what is my total","session_id":"s-1","sql":"SELECT total FROM ai_invoice"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}

	var resp askResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.CacheHit || resp.CacheAgeSeconds != 90 {
		t.Fatalf("cache fields = %v/%d", resp.CacheHit, resp.CacheAgeSeconds)
	}
	if gov.lastReq.TenantID != "acme" || gov.lastReq.SessionID != "s-1" {
		t.Fatalf("govern request = %+v", gov.lastReq)
	}
}

func TestAskTranslatesWhenSQLOmitted(t *testing.T) {
	gov := &fakeGovernor{response: governor.Response{Columns: []string{"total"}, Rows: [][]any{{1.0}}}}
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT total FROM ai_invoice"}}
	h := NewHandler(testConfig(t), Dependencies{Governor: gov, Translator: translator})

	rr := postJSON(h, "/v1/ask", "acme", `{"question":"Which vendor invoices are due?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if gov.lastReq.CandidateSQL != "SELECT total FROM ai_invoice" {
		t.Fatalf("candidate SQL = %q", gov.lastReq.CandidateSQL)
	}
	if len(translator.lastReq.SchemaHints) == 0 {
		t.Fatal("translator should receive schema hints")
	}
}

func TestAskRejectionHidesValidatorDetail(t *testing.T) {
	gov := &fakeGovernor{err: &governor.ValidationError{Reason: sqlguard.ReasonBlockedKeyword}}
	h := NewHandler(testConfig(t), Dependencies{Governor: gov})

	rr := postJSON(h, "/v1/ask", "acme", `{"question":"x","sql":"DROP TABLE ai_invoice"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if strings.Contains(body, "DROP") || strings.Contains(body, string(sqlguard.ReasonBlockedKeyword)) {
		t.Fatalf("response leaks validator detail: %s", body)
	}
	if !strings.Contains(body, "QUERY_REJECTED") {
		t.Fatalf("body = %s", body)
	}
}

func TestAskRateLimitCarriesRetryAfter(t *testing.T) {
	gov := &fakeGovernor{err: &governor.RateLimitError{RetryAfter: 42 * time.Second}}
	h := NewHandler(testConfig(t), Dependencies{Governor: gov})

	rr := postJSON(h, "/v1/ask", "acme", `{"question":"x","sql":"SELECT 1 FROM ai_invoice"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "42" {
		t.Fatalf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	if !strings.Contains(rr.Body.String(), "retry_after_seconds") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestAskExecutionFailureIsRetryable(t *testing.T) {
	gov := &fakeGovernor{err: &governor.ExecutionError{Err: context.DeadlineExceeded, Retryable: true}}
	h := NewHandler(testConfig(t), Dependencies{Governor: gov})

	rr := postJSON(h, "/v1/ask", "acme", `{"question":"x","sql":"SELECT 1 FROM ai_invoice"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["retryable"] != true {
		t.Fatalf("payload = %v", payload)
	}
}

func TestAskRequiresTenant(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Governor: &fakeGovernor{}})
	rr := postJSON(h, "/v1/ask", "", `{"question":"x","sql":"SELECT 1 FROM ai_invoice"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAskRequiresQuestionOrSQL(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Governor: &fakeGovernor{}})
	rr := postJSON(h, "/v1/ask", "acme", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestTranslateEndpoint(t *testing.T) {
	translator := &fakeTranslator{result: nl2sql.Result{SQL: "SELECT total FROM ai_invoice", Provider: "openai-compatible"}}
	h := NewHandler(testConfig(t), Dependencies{Translator: translator})

	rr := postJSON(h, "/v1/query/translate", "acme", `{"question":"what is my total"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "SELECT total FROM ai_invoice") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestCacheFlushRequiresAdminRole(t *testing.T) {
	cfg, err := config.Load("ledgergate-api", mapLookup(map[string]string{
		"LEDGERGATE_AUTH_REQUIRED":    "true",
		"LEDGERGATE_AUTH_STATIC_KEYS": "reader-key:acme:query_reader,admin-key:acme:query_reader|ops_admin",
	}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	gov := &fakeGovernor{flushed: 3}
	h := NewHandler(cfg, Dependencies{AuthMiddleware: auth.Middleware(nil, validator), Governor: gov})

	req := httptest.NewRequest(http.MethodPost, "/v1/cache/flush", nil)
	req.Header.Set("X-API-Key", "reader-key")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("reader status = %d, want 403", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/cache/flush", nil)
	req.Header.Set("X-API-Key", "admin-key")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin status = %d body=%s", rr.Code, rr.Body.String())
	}
	if gov.flushTo != "acme" {
		t.Fatalf("flushed tenant = %q", gov.flushTo)
	}
}

func TestEndSessionEndpoint(t *testing.T) {
	gov := &fakeGovernor{}
	h := NewHandler(testConfig(t), Dependencies{Governor: gov})

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/s-9", nil)
	req.Header.Set("X-Tenant-ID", "acme")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if gov.endedID != "s-9" {
		t.Fatalf("ended session = %q", gov.endedID)
	}
}
