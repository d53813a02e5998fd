package jwk

import (
	"crypto"
	"crypto/rsa"
	"fmt"
	"math/big"
)

// JWKS is the JSON form of a JWK set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK is the JSON form of a single key.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`

	// RSA public parameters
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// RSA private parameters
	D  string `json:"d,omitempty"`
	P  string `json:"p,omitempty"`
	Q  string `json:"q,omitempty"`
	DP string `json:"dp,omitempty"`
	DQ string `json:"dq,omitempty"`
	QI string `json:"qi,omitempty"`
}

// FormatPublicKey formats a public key as a JWK.
func FormatPublicKey(kid, alg string, key crypto.PublicKey) (*JWK, error) {
	switch k := key.(type) {
	case *rsa.PublicKey:
		return &JWK{
			Kty: KeyTypeRSA,
			Kid: kid,
			Use: "sig",
			Alg: alg,
			N:   encodeBase64URL(k.N.Bytes()),
			E:   encodeBase64URL(big.NewInt(int64(k.E)).Bytes()),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, key)
	}
}

// FormatPrivateKey formats a private key as a JWK, including its CRT
// parameters when the prime factors are known.
func FormatPrivateKey(kid, alg string, key crypto.PrivateKey) (*JWK, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		jwk, err := FormatPublicKey(kid, alg, &k.PublicKey)
		if err != nil {
			return nil, err
		}
		jwk.D = encodeBase64URL(k.D.Bytes())
		if len(k.Primes) == 2 {
			p, q := k.Primes[0], k.Primes[1]
			qi := new(big.Int).ModInverse(q, p)
			if qi == nil {
				return nil, fmt.Errorf("%w: prime factors are not coprime", ErrInvalidKey)
			}
			jwk.P = encodeBase64URL(p.Bytes())
			jwk.Q = encodeBase64URL(q.Bytes())
			jwk.DP = encodeBase64URL(new(big.Int).Mod(k.D, new(big.Int).Sub(p, bigOne)).Bytes())
			jwk.DQ = encodeBase64URL(new(big.Int).Mod(k.D, new(big.Int).Sub(q, bigOne)).Bytes())
			jwk.QI = encodeBase64URL(qi.Bytes())
		}
		return jwk, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, key)
	}
}

// PublicJWKS returns the public half of every key in the set. Signers come
// first; a verifier sharing a signer's kid is not repeated.
func (s *KeySet) PublicJWKS() (*JWKS, error) {
	set := &JWKS{Keys: make([]JWK, 0, len(s.signers)+len(s.verifiers))}
	for _, kid := range s.SignerIDs() {
		signer := s.signers[kid]
		jwk, err := FormatPublicKey(kid, signer.Algorithm(), signer.Public())
		if err != nil {
			return nil, fmt.Errorf("failed to format signer %q: %w", kid, err)
		}
		set.Keys = append(set.Keys, *jwk)
	}
	for _, kid := range s.VerifierIDs() {
		if _, ok := s.signers[kid]; ok {
			continue
		}
		verifier := s.verifiers[kid]
		jwk, err := FormatPublicKey(kid, verifier.Algorithm(), verifier.Public())
		if err != nil {
			return nil, fmt.Errorf("failed to format verifier %q: %w", kid, err)
		}
		set.Keys = append(set.Keys, *jwk)
	}
	return set, nil
}
