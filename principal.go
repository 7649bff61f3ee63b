package authgate

// PrincipalKind tags the two identities a request can carry.
type PrincipalKind uint8

const (
	// Guest is the identity of a request with no (valid) access token.
	Guest PrincipalKind = iota
	// Authenticated is the identity of a request bearing a verified token.
	Authenticated
)

// Principal is the resolved identity of a caller. It is produced exactly
// once, by Engine.VerifyAccess, and handed down unchanged; downstream code
// switches on Kind instead of re-inspecting token claims.
type Principal struct {
	Kind PrincipalKind

	// Set only when Kind == Authenticated.
	UserID  string
	Role    string
	TokenID string
}

// GuestPrincipal is the zero identity used for unauthenticated requests.
var GuestPrincipal = Principal{Kind: Guest}

// IsAuthenticated reports whether the principal carries a verified identity.
func (p Principal) IsAuthenticated() bool { return p.Kind == Authenticated }
