package audit

import (
	"context"
	"encoding/json"
	"time"

	ctxutil "github.com/sandipay/auth-service/pkg/context"
	"gorm.io/datatypes"
)

// Actions recorded by the authentication flows.
const (
	ActionLogin                = "Login"
	ActionRegister             = "Register"
	ActionRefreshToken         = "RefreshToken"
	ActionLogout               = "Logout"
	ActionChangePassword       = "ChangePassword"
	ActionAccountLocked        = "AccountLocked"
	ActionLockedAccountAttempt = "LockedAccountAttempt"
)

// ResourceAuth is the resource tag for authentication events.
const ResourceAuth = "auth"

// Event is a single audit record. SubjectID, SessionID, ResourceID, IP,
// UserAgent and ErrorMessage are optional; empty values are omitted from
// the serialized entry.
type Event struct {
	Action       string            `json:"action"`
	Resource     string            `json:"resource"`
	SubjectID    uint              `json:"subject_id,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Method       string            `json:"method,omitempty"`
	Endpoint     string            `json:"endpoint,omitempty"`
	IP           string            `json:"ip,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	StatusCode   int               `json:"status_code,omitempty"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// EnrichFromContext fills request-scoped fields the caller left empty
// from the middleware-populated context.
func (e Event) EnrichFromContext(ctx context.Context) Event {
	if e.Method == "" {
		e.Method = ctxutil.GetMethod(ctx)
	}
	if e.Endpoint == "" {
		e.Endpoint = ctxutil.GetEndpoint(ctx)
	}
	if e.IP == "" {
		e.IP = ctxutil.GetClientIP(ctx)
	}
	if e.UserAgent == "" {
		e.UserAgent = ctxutil.GetUserAgent(ctx)
	}
	return e
}

// StreamValues flattens the event into redis stream fields. The metadata
// map is carried as one JSON field so consumers get a stable schema.
func (e Event) StreamValues() map[string]interface{} {
	values := map[string]interface{}{
		"action":      e.Action,
		"resource":    e.Resource,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339),
	}

	if e.SubjectID != 0 {
		values["subject_id"] = e.SubjectID
	}
	if e.SessionID != "" {
		values["session_id"] = e.SessionID
	}
	if e.ResourceID != "" {
		values["resource_id"] = e.ResourceID
	}
	if e.Method != "" {
		values["method"] = e.Method
	}
	if e.Endpoint != "" {
		values["endpoint"] = e.Endpoint
	}
	if e.IP != "" {
		values["ip"] = e.IP
	}
	if e.UserAgent != "" {
		values["user_agent"] = e.UserAgent
	}
	if e.StatusCode != 0 {
		values["status_code"] = e.StatusCode
	}
	if e.ErrorMessage != "" {
		values["error_message"] = e.ErrorMessage
	}
	if len(e.Metadata) > 0 {
		if raw, err := json.Marshal(e.Metadata); err == nil {
			values["metadata"] = string(raw)
		}
	}

	return values
}
