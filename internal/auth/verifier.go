package auth

import (
	"context"
	"time"
)

// Claims is the subset of a verified identity token the application acts on.
type Claims struct {
	UID            string
	Email          string
	EmailVerified  bool
	Name           string
	Picture        string
	SignInProvider string
}

// AccountMetadata is provider-side account bookkeeping, used to recompute
// first-login server-side instead of trusting client flags.
type AccountMetadata struct {
	CreatedAt    time.Time
	LastSignInAt time.Time
}

// FirstLogin reports whether this sign-in is the account's first: the
// provider stamps both times identically on creation.
func (m *AccountMetadata) FirstLogin() bool {
	return m.CreatedAt.Equal(m.LastSignInAt)
}

// TokenVerifier verifies bearer tokens and fetches account metadata from the
// identity provider. Constructed explicitly and injected into handlers; no
// package-level singleton.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Claims, error)
	AccountMetadata(ctx context.Context, uid string) (*AccountMetadata, error)
}

// Providers whose email verification is implicit in the sign-in itself.
// Email/password and email-link accounts verify out-of-band, so they are
// exempt from the strict check.
const (
	ProviderGoogle    = "google.com"
	ProviderPassword  = "password"
	ProviderEmailLink = "emailLink"
)

// RequiresVerifiedEmail reports whether sync must reject unverified emails
// for the given sign-in provider.
func RequiresVerifiedEmail(provider string) bool {
	switch provider {
	case ProviderPassword, ProviderEmailLink:
		return false
	}
	return true
}
