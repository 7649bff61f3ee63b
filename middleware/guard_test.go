package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sablehq/authgate"
)

type staticVerifier struct {
	principal authgate.Principal
	err       error
	lastToken string
}

func (v *staticVerifier) VerifyAccess(_ context.Context, token string) (authgate.Principal, error) {
	v.lastToken = token
	if v.err != nil {
		return authgate.GuestPrincipal, v.err
	}
	return v.principal, nil
}

func alice() authgate.Principal {
	return authgate.Principal{
		Kind:    authgate.Authenticated,
		UserID:  "u-alice",
		Role:    "user",
		TokenID: "jti-1",
	}
}

func TestGuardRejectsMissingToken(t *testing.T) {
	verifier := &staticVerifier{principal: alice()}
	called := false
	handler := Guard(verifier)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	for _, header := range []string{"", "Basic dXNlcg==", "Bearer ", "token-without-scheme"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
	if called {
		t.Fatal("handler ran without a bearer token")
	}
}

func TestGuardRejectsInvalidToken(t *testing.T) {
	verifier := &staticVerifier{err: authgate.ErrTokenInvalid}
	handler := Guard(verifier)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler ran with an invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGuardInjectsPrincipal(t *testing.T) {
	verifier := &staticVerifier{principal: alice()}

	var got authgate.Principal
	var found bool
	handler := Guard(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if verifier.lastToken != "good-token" {
		t.Fatalf("verifier saw token %q, want %q", verifier.lastToken, "good-token")
	}
	if !found || got.UserID != "u-alice" || !got.IsAuthenticated() {
		t.Fatalf("principal = %+v (found=%t)", got, found)
	}
}

func TestOptionalLetsGuestsThrough(t *testing.T) {
	verifier := &staticVerifier{err: authgate.ErrTokenInvalid}

	var got authgate.Principal
	handler := Optional(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
	}))

	// No token at all, then an invalid one: both resolve to Guest.
	for _, withHeader := range []bool{false, true} {
		req := httptest.NewRequest(http.MethodGet, "/page", nil)
		if withHeader {
			req.Header.Set("Authorization", "Bearer stale")
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("withHeader=%t: status = %d, want 200", withHeader, rec.Code)
		}
		if got.IsAuthenticated() {
			t.Fatalf("withHeader=%t: resolved %+v, want guest", withHeader, got)
		}
	}
}

func TestOptionalResolvesValidToken(t *testing.T) {
	verifier := &staticVerifier{principal: alice()}

	var got authgate.Principal
	handler := Optional(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got.UserID != "u-alice" {
		t.Fatalf("principal = %+v, want alice", got)
	}
}

func TestClientAddr(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"host port", "10.0.0.7:4312", "", "10.0.0.7"},
		{"no port", "10.0.0.7", "", "10.0.0.7"},
		{"forwarded single", "10.0.0.7:4312", "203.0.113.9", "203.0.113.9"},
		{"forwarded chain", "10.0.0.7:4312", "203.0.113.9, 70.41.3.18", "203.0.113.9"},
		{"forwarded spaced", "10.0.0.7:4312", "  203.0.113.9  ", "203.0.113.9"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		if tc.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tc.forwarded)
		}

		if got := clientAddr(req); got != tc.want {
			t.Fatalf("%s: clientAddr = %q, want %q", tc.name, got, tc.want)
		}
	}
}
