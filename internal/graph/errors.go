package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// codeInvalidToken is Graph's OAuthException code for expired or invalid tokens.
const codeInvalidToken = 190

// Error is a Graph API error response.
type Error struct {
	StatusCode int
	Message    string
	Type       string
	Code       int
	Subcode    int
	TraceID    string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Type == "" {
		return fmt.Sprintf("graph: %s (status %d)", msg, e.StatusCode)
	}
	return fmt.Sprintf("graph: %s (%s, code %d)", msg, e.Type, e.Code)
}

type errorEnvelope struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		Subcode   int    `json:"error_subcode"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

func decodeError(status int, body []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Message == "" {
		return &Error{StatusCode: status}
	}
	return &Error{
		StatusCode: status,
		Message:    env.Error.Message,
		Type:       env.Error.Type,
		Code:       env.Error.Code,
		Subcode:    env.Error.Subcode,
		TraceID:    env.Error.FBTraceID,
	}
}

// IsTokenError reports whether err means the access token must be replaced:
// a missing token, Graph code 190, or a message mentioning both "access" and "token".
func IsTokenError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingToken) {
		return true
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		if gerr.Code == codeInvalidToken {
			return true
		}
		msg := strings.ToLower(gerr.Message)
		return strings.Contains(msg, "access") && strings.Contains(msg, "token")
	}
	return false
}
