package jwk

import "fmt"

// classified is the outcome of classifying one key object: exactly one of
// signer and verifier is set.
type classified struct {
	kid      string
	signer   Signer
	verifier Verifier
}

// classifyKey turns a key object into a signer or a verifier. Keys with a
// private exponent become signers, all others verifiers.
func classifyKey(o object) (classified, error) {
	kty, err := o.stringField("kty")
	if err != nil {
		return classified{}, fmt.Errorf("failed to parse JWK: %w", err)
	}
	kid, err := o.stringField("kid")
	if err != nil {
		return classified{}, fmt.Errorf("failed to parse JWK: %w", err)
	}

	switch kty {
	case KeyTypeRSA:
		return classifyRSAKey(kid, o)
	default:
		return classified{}, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, kty)
	}
}

func classifyRSAKey(kid string, o object) (classified, error) {
	alg := DefaultRSAAlgorithm
	if o.has("alg") {
		var err error
		if alg, err = o.stringField("alg"); err != nil {
			return classified{}, err
		}
	}
	if _, err := rsaHash(alg); err != nil {
		return classified{}, err
	}

	if o.has("d") {
		p, err := extractParams(o, rsaPrivateParams, rsaPrivateOptionals)
		if err != nil {
			return classified{}, fmt.Errorf("failed to create RSA private key: %w", err)
		}
		key, err := newRSAPrivateKey(p)
		if err != nil {
			return classified{}, fmt.Errorf("failed to create RSA private key: %w", err)
		}
		signer, err := NewRSASigner(key, alg)
		if err != nil {
			return classified{}, err
		}
		return classified{kid: kid, signer: signer}, nil
	}

	p, err := extractParams(o, rsaPublicParams, nil)
	if err != nil {
		return classified{}, fmt.Errorf("failed to create RSA public key: %w", err)
	}
	key, err := newRSAPublicKey(p)
	if err != nil {
		return classified{}, fmt.Errorf("failed to create RSA public key: %w", err)
	}
	verifier, err := NewRSAVerifier(key, alg)
	if err != nil {
		return classified{}, err
	}
	return classified{kid: kid, verifier: verifier}, nil
}
