// Package middleware holds the Echo middleware shared by every HTTP
// handler: tenant-context propagation and response body normalization.
package middleware

import "context"

// contextKey namespaces values this package stores on a context.Context
// so they cannot collide with keys set by other packages.
type contextKey string

const (
	// OrgIDKey is the context key for the path-scoped organization UUID
	// (spec §1 — every operation is tenant-scoped by organizationId).
	OrgIDKey contextKey = "org_id"
	// RequestIDKey is the context key WithRequestID/GetRequestID use for a
	// gateway request id. The attempt handler takes gatewayRequestId from
	// the request body and does not read this key.
	RequestIDKey contextKey = "gateway_request_id"
)

// WithOrgID returns a new context carrying the organization ID.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// GetOrgID extracts the organization ID set by the tenant-scoping
// middleware.
func GetOrgID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(OrgIDKey).(string)
	return v, ok
}

// WithRequestID returns a new context carrying the gateway request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID extracts the gateway request id, if one was set.
func GetRequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(RequestIDKey).(string)
	return v, ok
}
