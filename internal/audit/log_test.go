package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"sportsroz.org/internal/auth"
	"sportsroz.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithPrincipal(ctx, auth.Principal{User: &auth.User{
		ID:       "user-42",
		OfficeID: "office-7",
		RoleID:   "role-9",
	}})

	if err := LogEvent(ctx, "auth.login", map[string]any{"email_domain": "example.com"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "auth.login" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	actor, ok := entry["actor"].(map[string]any)
	if !ok {
		t.Fatalf("actor missing: %v", entry)
	}
	if actor["user_id"] != "user-42" || actor["office_id"] != "office-7" || actor["role_id"] != "role-9" {
		t.Fatalf("unexpected actor: %v", actor)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["email_domain"] != "example.com" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventAnonymous(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	if err := LogEvent(context.Background(), "auth.register", nil); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if _, ok := entry["actor"]; ok {
		t.Fatalf("actor present on anonymous event: %v", entry["actor"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("blank event name accepted")
	}
}

func TestWithRequestIDIgnoresBlank(t *testing.T) {
	ctx := WithRequestID(context.Background(), "   ")
	if rid := requestIDFromContext(ctx); rid != "" {
		t.Fatalf("blank request id stored: %q", rid)
	}
}
