package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/sablehq/authgate"
)

// Verifier is the slice of authgate.Engine the guards use.
type Verifier interface {
	VerifyAccess(ctx context.Context, token string) (authgate.Principal, error)
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal a guard resolved for this
// request. On routes without a guard the bool is false; treat that as Guest.
func PrincipalFromContext(ctx context.Context) (authgate.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(authgate.Principal)
	return p, ok
}

// Guard rejects requests that do not carry a valid bearer token and injects
// the authenticated principal into the request context for everything else.
func Guard(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := verifier.VerifyAccess(r.Context(), token)
			if err != nil || !principal.IsAuthenticated() {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional resolves a principal when a bearer token is present but lets
// guests through. Handlers downstream see either the authenticated principal
// or authgate.GuestPrincipal; an invalid token is treated as no token.
func Optional(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := authgate.GuestPrincipal

			if verifier != nil {
				if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
					if p, err := verifier.VerifyAccess(r.Context(), token); err == nil {
						principal = p
					}
				}
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientInfo stamps the caller's network address and User-Agent onto the
// request context, so engine calls made by the handler throttle, classify
// and audit against the right client. Mount it outside the guards.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authgate.WithClientAddress(r.Context(), clientAddr(r))
		ctx = authgate.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientAddr(r *http.Request) string {
	// First hop of X-Forwarded-For when a proxy filled it in.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
