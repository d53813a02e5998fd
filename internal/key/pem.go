package key

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/zarvd/jwks-signer/internal/jwk"
)

// DecodeRSAPrivateKey decodes a PEM encoded PKCS #1 or PKCS #8 RSA private key.
func DecodeRSAPrivateKey(p string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(p))
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return privateKey, nil
	}
	key, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if pkcs8Err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, not RSA", key)
	}
	return rsaKey, nil
}

// EncodeJWKS returns a JWK set document holding key under kid. When
// withPublic is set, the public half is added as a second entry with the
// same key ID so that the document also serves verifiers.
func EncodeJWKS(kid, alg string, key *rsa.PrivateKey, withPublic bool) ([]byte, error) {
	private, err := jwk.FormatPrivateKey(kid, alg, key)
	if err != nil {
		return nil, fmt.Errorf("failed to format private key: %w", err)
	}
	set := jwk.JWKS{Keys: []jwk.JWK{*private}}
	if withPublic {
		public, err := jwk.FormatPublicKey(kid, alg, &key.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to format public key: %w", err)
		}
		set.Keys = append(set.Keys, *public)
	}
	return json.MarshalIndent(set, "", "  ")
}
