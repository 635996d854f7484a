package nl2sql

import "context"

// Request carries one question to translate. SchemaHints lists columns the
// question appears to reference, derived from the keyword vocabulary.
type Request struct {
	TenantID    string   `json:"tenant_id"`
	Question    string   `json:"question"`
	Tables      []string `json:"tables"`
	SchemaHints []string `json:"schema_hints"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Translator turns a question into candidate SQL. Output is never trusted:
// every candidate passes through validation before it may execute.
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
