package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ledgergate/ledgergate/internal/config"
)

func TestNewLoggerStampsTraceIDFromContext(t *testing.T) {
	cfg, err := config.Load("ledgergate-api", func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	var buf bytes.Buffer
	logger := NewLogger(cfg, &buf)

	ctx := ContextWithTraceID(context.Background(), "trace-abc")
	logger.InfoContext(ctx, "governed request")

	line := buf.String()
	if !strings.Contains(line, "trace-abc") {
		t.Fatalf("log line missing trace id: %s", line)
	}
	if !strings.Contains(line, "ledgergate-api") {
		t.Fatalf("log line missing service name: %s", line)
	}
}

func TestNewLoggerOmitsTraceIDWithoutContextValue(t *testing.T) {
	cfg, err := config.Load("ledgergate-api", func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	var buf bytes.Buffer
	logger := NewLogger(cfg, &buf)
	logger.Info("startup")

	if strings.Contains(buf.String(), "trace_id") {
		t.Fatalf("log line should not carry a trace id: %s", buf.String())
	}
}