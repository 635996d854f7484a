package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ledgergate/ledgergate/internal/auth"
	"github.com/ledgergate/ledgergate/internal/config"
	"github.com/ledgergate/ledgergate/internal/governor"
	"github.com/ledgergate/ledgergate/internal/items"
	"github.com/ledgergate/ledgergate/internal/keyword"
	"github.com/ledgergate/ledgergate/internal/nl2sql"
)

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
	SQL       string `json:"sql"`
}

type askResponse struct {
	Columns         []string          `json:"columns"`
	Rows            [][]any           `json:"rows"`
	Expanded        bool              `json:"expanded"`
	Stats           *items.Statistics `json:"stats,omitempty"`
	CacheHit        bool              `json:"cache_hit"`
	CacheAgeSeconds int               `json:"cache_age_seconds"`
}

func handleAsk(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Governor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "GOVERNOR_NOT_CONFIGURED", "query governance is not configured", false, nil)
		return
	}

	tenantID, err := tenantFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireRole(r, "query_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" && strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question or sql is required", false, nil)
		return
	}

	candidateSQL := strings.TrimSpace(request.SQL)
	if candidateSQL == "" {
		if deps.Translator == nil {
			writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATOR_NOT_CONFIGURED", "natural language translation is not configured", false, nil)
			return
		}
		translated, err := deps.Translator.Translate(r.Context(), nl2sql.Request{
			TenantID:    tenantID,
			Question:    request.Question,
			Tables:      cfg.Items.AllowedTables,
			SchemaHints: keyword.ColumnHints(request.Question),
		})
		if err != nil {
			writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATION_FAILED", "could not translate the question, please retry", true, nil)
			return
		}
		candidateSQL = translated.SQL
	}

	response, err := deps.Governor.Govern(r.Context(), governor.Request{
		Question:     request.Question,
		TenantID:     tenantID,
		SessionID:    sessionFromRequest(r, request.SessionID),
		CandidateSQL: candidateSQL,
	})
	if err != nil {
		writeGovernError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Columns:         response.Columns,
		Rows:            response.Rows,
		Expanded:        response.Expanded,
		Stats:           response.Stats,
		CacheHit:        response.CacheHit,
		CacheAgeSeconds: int(response.CacheAge.Seconds()),
	})
}

// writeGovernError maps pipeline errors to responses. Messages stay generic:
// rejection reasons and SQL text are audit-only.
func writeGovernError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *governor.ValidationError
	if errors.As(err, &validationErr) {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_REJECTED", "query could not be processed safely", false, nil)
		return
	}

	var rateErr *governor.RateLimitError
	if errors.As(err, &rateErr) {
		retryAfter := int(rateErr.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(r.Context(), w, http.StatusTooManyRequests, "RATE_LIMITED", "request quota exceeded", true, map[string]any{
			"retry_after_seconds": retryAfter,
		})
		return
	}

	var execErr *governor.ExecutionError
	if errors.As(err, &execErr) {
		writeError(r.Context(), w, http.StatusBadGateway, "EXECUTION_FAILED", "query execution failed, please retry", execErr.Retryable, nil)
		return
	}

	writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", true, nil)
}

type translateRequest struct {
	Question string `json:"question"`
}

func handleTranslate(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATOR_NOT_CONFIGURED", "natural language translation is not configured", false, nil)
		return
	}

	tenantID, err := tenantFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireRole(r, "query_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request translateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translate request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	result, err := deps.Translator.Translate(r.Context(), nl2sql.Request{
		TenantID:    tenantID,
		Question:    request.Question,
		Tables:      cfg.Items.AllowedTables,
		SchemaHints: keyword.ColumnHints(request.Question),
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATION_FAILED", "could not translate the question, please retry", true, nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleCacheFlush(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Governor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "GOVERNOR_NOT_CONFIGURED", "query governance is not configured", false, nil)
		return
	}

	tenantID, err := tenantFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireRole(r, "ops_admin"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	flushed, err := deps.Governor.Flush(r.Context(), tenantID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "CACHE_FLUSH_FAILED", "cache flush failed", true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flushed": flushed})
}

func handleEndSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Governor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "GOVERNOR_NOT_CONFIGURED", "query governance is not configured", false, nil)
		return
	}

	tenantID, err := tenantFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "TENANT_REQUIRED", err.Error(), false, nil)
		return
	}

	sessionID := strings.TrimSpace(r.PathValue("session"))
	if sessionID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SESSION_REQUIRED", "session id is required", false, nil)
		return
	}
	deps.Governor.EndSession(tenantID, sessionID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ended"})
}

func tenantFromRequest(r *http.Request) (string, error) {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		if strings.TrimSpace(identity.TenantID) != "" {
			return identity.TenantID, nil
		}
	}
	tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
	if tenantID == "" {
		return "", fmt.Errorf("tenant context is required")
	}
	return tenantID, nil
}

func sessionFromRequest(r *http.Request, bodySessionID string) string {
	if session := strings.TrimSpace(bodySessionID); session != "" {
		return session
	}
	if session := strings.TrimSpace(r.Header.Get("X-Session-ID")); session != "" {
		return session
	}
	return "default"
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}
