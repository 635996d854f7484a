package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ledgergate/ledgergate/internal/auth"
	"github.com/ledgergate/ledgergate/internal/config"
	"github.com/ledgergate/ledgergate/internal/governor"
)

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestHealthEndpoint(t *testing.T) {
	cfg, err := config.Load("ledgergate-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	cfg, err := config.Load("ledgergate-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		Readiness: func(context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	cfg, err := config.Load("ledgergate-api", mapLookup(map[string]string{
		"LEDGERGATE_AUTH_REQUIRED": "true",
	}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	validator, err := auth.NewStaticAPIKeyValidator("k1:t1:query_reader")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Governor:       &fakeGovernor{},
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", rr.Code)
	}
}

func TestCombineReadinessChecksStopsAtFirstFailure(t *testing.T) {
	calls := 0
	failing := func(context.Context) error {
		calls++
		return errors.New("down")
	}
	notReached := func(context.Context) error {
		t.Fatal("check after a failure must not run")
		return nil
	}

	if err := CombineReadinessChecks(nil, failing, notReached)(context.Background()); err == nil {
		t.Fatal("combined check should fail")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

type fakeGovernor struct {
	response  governor.Response
	err       error
	flushed   int
	lastReq   governor.Request
	endedID   string
	flushTo   string
	callCount int
}

func (f *fakeGovernor) Govern(_ context.Context, req governor.Request) (governor.Response, error) {
	f.callCount++
	f.lastReq = req
	if f.err != nil {
		return governor.Response{}, f.err
	}
	return f.response, nil
}

func (f *fakeGovernor) Flush(_ context.Context, tenantID string) (int, error) {
	f.flushTo = tenantID
	return f.flushed, nil
}

func (f *fakeGovernor) EndSession(_, sessionID string) {
	f.endedID = sessionID
}
