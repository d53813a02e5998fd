package key

import (
	"context"
	"time"

	"github.com/zarvd/jwks-signer/internal/jwk"
)

type SignedToken struct {
	KeyID     string
	Header    string
	Payload   string
	Signature string
}

type PublicKey struct {
	KeyID string
	// Key is the PKIX, ASN.1 DER form of the public key.
	Key []byte
}

// Source returns the current JWK set document.
type Source func(ctx context.Context) ([]byte, error)

type Config struct {
	Source Source
	// SigningKeyID selects the signer used by Sign. When empty, the only
	// signer of the key set is used.
	SigningKeyID string
	// ReloadInterval is how often Source is read again; zero disables reloads.
	ReloadInterval time.Duration
	// Expiration is the maximum lifetime of issued tokens.
	Expiration time.Duration
}

type KeyManager interface {
	Close() error
	Sign(ctx context.Context, encodedClaims string) (*SignedToken, error)
	PublicKeys() []*PublicKey
	KeySet() *jwk.KeySet
	Expiration() time.Duration
	LastLoadedAt() time.Time
}
