package authgate

import "context"

type clientAddressContextKey struct{}
type userAgentContextKey struct{}

// WithClientAddress attaches the caller's network address to ctx. The engine
// uses it for throttle bookkeeping, session records, and audit events.
func WithClientAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientAddressContextKey{}, addr)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Sessions created
// during login classify their device and browser from it.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	addr, _ := ctx.Value(clientAddressContextKey{}).(string)
	return addr
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}
