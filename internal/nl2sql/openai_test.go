package nl2sql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStripMarkdownSQL(t *testing.T) {
	got := stripMarkdownSQL("```sql\nSELECT 1;\n```")
	if got != "SELECT 1;" {
		t.Fatalf("stripMarkdownSQL() = %q", got)
	}
}

func TestTranslateParsesChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var payload struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if len(payload.Messages) == 2 && !strings.Contains(payload.Messages[1].Content, "ai_invoice") {
			t.Errorf("user prompt missing allowed table: %q", payload.Messages[1].Content)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "```sql\nSELECT total FROM ai_invoice\n```"}},
			},
		})
	}))
	defer server.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	result, err := translator.Translate(context.Background(), Request{
		TenantID: "acme",
		Question: "What is my invoice total?",
		Tables:   []string{"ai_invoice"},
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.SQL != "SELECT total FROM ai_invoice" {
		t.Fatalf("SQL = %q", result.SQL)
	}
}

func TestTranslateRejectsEmptyModelOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "   "}}},
		})
	}))
	defer server.Close()

	translator, _ := NewOpenAITranslator(OpenAIConfig{BaseURL: server.URL, APIKey: "test-key"})
	if _, err := translator.Translate(context.Background(), Request{Question: "anything"}); err == nil {
		t.Fatal("empty SQL should error")
	}
}

func TestNewOpenAITranslatorValidatesConfig(t *testing.T) {
	if _, err := NewOpenAITranslator(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Fatal("missing base URL should error")
	}
	if _, err := NewOpenAITranslator(OpenAIConfig{BaseURL: "http://localhost"}); err == nil {
		t.Fatal("missing api key should error")
	}
}
