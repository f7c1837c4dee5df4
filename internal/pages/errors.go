package pages

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned before a page access token has been accepted.
	ErrNotAuthenticated = errors.New("page access token has not been set")
	// ErrPostNotFound is returned when a post is missing or lacks required fields.
	ErrPostNotFound = errors.New("this post does not exist")
)

// ValidationError reports input the dashboard refuses to send to Graph.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
