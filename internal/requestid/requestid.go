// Package requestid carries the per-request correlation id through a context.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header used to pass a request id in and out of the service.
const Header = "X-Request-ID"

type contextKey struct{}

// New returns a fresh random request id.
func New() string {
	return uuid.New().String()
}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the request id stored in ctx, or "" if there is none.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
