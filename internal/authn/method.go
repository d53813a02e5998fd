package authn

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zarvd/jwks-signer/internal/jwk"
)

var _ jwt.SigningMethod = signingMethod{}

// signingMethod lets golang-jwt sign and verify through jwk.Signer and
// jwk.Verifier instead of raw key material.
type signingMethod struct {
	alg string
}

func (m signingMethod) Alg() string {
	return m.alg
}

func (m signingMethod) Sign(signingString string, key interface{}) ([]byte, error) {
	signer, ok := key.(jwk.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a signer", jwt.ErrInvalidKeyType, key)
	}
	if signer.Algorithm() != m.alg {
		return nil, fmt.Errorf("%w: key signs %s, not %s", jwt.ErrInvalidKey, signer.Algorithm(), m.alg)
	}
	return signer.Sign([]byte(signingString))
}

func (m signingMethod) Verify(signingString string, sig []byte, key interface{}) error {
	verifier, ok := key.(jwk.Verifier)
	if !ok {
		return fmt.Errorf("%w: %T is not a verifier", jwt.ErrInvalidKeyType, key)
	}
	if verifier.Algorithm() != m.alg {
		return fmt.Errorf("%w: key verifies %s, not %s", jwt.ErrSignatureInvalid, verifier.Algorithm(), m.alg)
	}
	if err := verifier.Verify([]byte(signingString), sig); err != nil {
		return fmt.Errorf("%w: %v", jwt.ErrSignatureInvalid, err)
	}
	return nil
}
