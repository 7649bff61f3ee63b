package test

import (
	"context"
	"net/http"
	"testing"

	"github.com/sablehq/authgate"
	"github.com/sablehq/authgate/middleware"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = authgate.New
	_ = authgate.DefaultConfig

	var _ *authgate.Engine
	var _ authgate.Config
	var _ authgate.Credential
	var _ authgate.CredentialStore
	var _ authgate.MailService
	var _ authgate.AuditSink
	var _ authgate.RegisterRequest
	var _ authgate.RegisterResult
	var _ authgate.LoginResult
	var _ authgate.TokenPair
	var _ authgate.Principal
	var _ authgate.SecurityReport

	var _ error = authgate.ErrInvalidCredentials
	var _ error = authgate.ErrAccountLocked
	var _ error = authgate.ErrEmailNotVerified
	var _ error = authgate.ErrAccountInactive
	var _ error = authgate.ErrAccountExists
	var _ error = authgate.ErrTokenExpired
	var _ error = authgate.ErrTokenInvalid
	var _ error = authgate.ErrTokenReplayed
	var _ error = authgate.ErrValidation
	var _ error = authgate.ErrNotFound
	var _ error = authgate.ErrServiceUnavailable
	var _ error = authgate.ErrEngineNotReady
	var _ error = &authgate.ThrottledError{}

	var _ func(middleware.Verifier) func(http.Handler) http.Handler = middleware.Guard
	var _ func(middleware.Verifier) func(http.Handler) http.Handler = middleware.Optional
	var _ func(http.Handler) http.Handler = middleware.ClientInfo

	var _ func(*authgate.Engine, context.Context, authgate.RegisterRequest) (*authgate.RegisterResult, error) = (*authgate.Engine).Register
	var _ func(*authgate.Engine, context.Context, string, string) (*authgate.LoginResult, error) = (*authgate.Engine).Login
	var _ func(*authgate.Engine, context.Context, string) (*authgate.TokenPair, error) = (*authgate.Engine).Refresh
	var _ func(*authgate.Engine, context.Context, string) (authgate.Principal, error) = (*authgate.Engine).VerifyAccess
	var _ func(*authgate.Engine, context.Context, string) error = (*authgate.Engine).Logout
	var _ func(*authgate.Engine, context.Context, string) (string, error) = (*authgate.Engine).RequestPasswordReset
	var _ func(*authgate.Engine, context.Context, string, string) error = (*authgate.Engine).ConfirmPasswordReset
	var _ func(*authgate.Engine, context.Context, string, string, string) error = (*authgate.Engine).ChangePassword
}
