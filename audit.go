package authgate

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event types. One constant per security-relevant action; failure
// variants share the type with Success=false and the error in Error.
const (
	EventRegister          = "account.register"
	EventLoginSuccess      = "login.success"
	EventLoginFailure      = "login.failure"
	EventLoginThrottled    = "login.throttled"
	EventLogout            = "logout"
	EventTokenRefresh      = "token.refresh"
	EventTokenReplay       = "token.replay"
	EventVerificationSent  = "verification.sent"
	EventEmailVerified     = "verification.completed"
	EventResetRequested    = "reset.requested"
	EventResetCompleted    = "reset.completed"
	EventPasswordChanged   = "password.changed"
	EventSessionRevoked    = "session.revoked"
	EventSessionsRevokeAll = "session.revoked_all"

	// EventThrottleUnavailable marks a login that was allowed because the
	// throttle store could not be consulted.
	EventThrottleUnavailable = "login.throttle_unavailable"
)

// SecurityEvent is one entry in the security audit trail.
type SecurityEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     string            `json:"event_type"`
	UserID        string            `json:"user_id,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	ClientAddress string            `json:"client_address,omitempty"`
	UserAgent     string            `json:"user_agent,omitempty"`
	Description   string            `json:"description,omitempty"`
	Success       bool              `json:"success"`
	Error         string            `json:"error,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives security events from the engine's dispatcher. Emit is
// called from a single dispatcher goroutine, never from a caller's hot
// path, and must not panic; a slow sink delays delivery but never the
// operation that produced the event.
type AuditSink interface {
	Emit(ctx context.Context, event SecurityEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, SecurityEvent) {}

// ChannelSink hands events to a consumer channel, for callers that want to
// process the trail in their own goroutine.
type ChannelSink struct {
	events chan SecurityEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan SecurityEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event SecurityEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events returns the consumer side of the sink.
func (s *ChannelSink) Events() <-chan SecurityEvent {
	return s.events
}

// JSONWriterSink appends one JSON document per line to a writer. Suitable
// for log files and pipes.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event SecurityEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
