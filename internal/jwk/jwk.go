// Package jwk turns JSON Web Key Set documents (RFC 7517) into signers and
// verifiers keyed by key ID.
package jwk

import "crypto"

// Key types understood by Parse.
const (
	KeyTypeRSA = "RSA"
)

// Signer holds a private key or a shared secret and signs messages with it.
//
// Implementations must be safe for concurrent use.
type Signer interface {
	// Sign computes the signature of message.
	Sign(message []byte) ([]byte, error)
	// Algorithm is the JWS "alg" value of the produced signatures.
	Algorithm() string
	// Public returns the public half of the key, or nil for symmetric keys.
	Public() crypto.PublicKey
}

// Verifier holds a public key or a shared secret and checks signatures.
//
// Implementations must be safe for concurrent use.
type Verifier interface {
	// Verify returns nil if signature is a valid signature of message.
	Verify(message, signature []byte) error
	Algorithm() string
	Public() crypto.PublicKey
}
