// Package audit emits structured audit events for security-relevant actions.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"sportsroz.org/internal/auth"
	"sportsroz.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// record is the wire shape of one audit line. The actor block identifies who
// performed the action; public endpoints (register, login) have no actor.
type record struct {
	TS     string         `json:"ts"`
	Type   string         `json:"type"`
	Event  string         `json:"event"`
	Req    string         `json:"request_id,omitempty"`
	Actor  *actor         `json:"actor,omitempty"`
	Fields map[string]any `json:"fields"`
}

type actor struct {
	UserID   string `json:"user_id"`
	OfficeID string `json:"office_id,omitempty"`
	RoleID   string `json:"role_id,omitempty"`
}

func actorFromContext(ctx context.Context) *actor {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok || principal.User == nil {
		return nil
	}
	return &actor{
		UserID:   principal.User.ID,
		OfficeID: principal.User.OfficeID,
		RoleID:   principal.User.RoleID,
	}
}

// LogEvent writes one audit line enriched with the request id and the acting
// principal's identity, office and role from the context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	rec := record{
		TS:     time.Now().UTC().Format(time.RFC3339Nano),
		Type:   "audit",
		Event:  event,
		Req:    requestIDFromContext(ctx),
		Actor:  actorFromContext(ctx),
		Fields: map[string]any{},
	}
	for k, v := range fields {
		rec.Fields[k] = v
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
