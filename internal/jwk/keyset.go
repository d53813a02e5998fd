package jwk

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// KeySet holds the signers and verifiers built from a JWK set document.
// It is immutable once returned by Parse and safe for concurrent use.
type KeySet struct {
	signers     map[string]Signer
	verifiers   map[string]Verifier
	diagnostics []*KeyError
}

// Parse converts a JWK set document into a KeySet.
//
// Parse fails only when the document is not a JSON object, has no "keys"
// array, or the array holds something other than objects. Key objects that
// cannot be turned into a signer or a verifier are left out and reported by
// Diagnostics. A later key with the same "kid" replaces an earlier one.
func Parse(document []byte) (*KeySet, error) {
	if firstByte(document) != '{' {
		return nil, newParseError(ParseErrorInvalidJSON, "document is not a JSON object", nil)
	}
	var root object
	if err := json.Unmarshal(document, &root); err != nil {
		return nil, newParseError(ParseErrorInvalidJSON, "failed to parse into JSON", err)
	}

	keysRaw, ok := root["keys"]
	if !ok {
		return nil, newParseError(ParseErrorMissingKeysField, "failed to locate 'keys' in JWK set", nil)
	}
	if firstByte(keysRaw) != '[' {
		return nil, newParseError(ParseErrorKeysNotArray, "'keys' is not an array", nil)
	}
	var keys []json.RawMessage
	if err := json.Unmarshal(keysRaw, &keys); err != nil {
		return nil, newParseError(ParseErrorKeysNotArray, "'keys' is not an array", err)
	}

	set := &KeySet{
		signers:   make(map[string]Signer),
		verifiers: make(map[string]Verifier),
	}
	for i, raw := range keys {
		if firstByte(raw) != '{' {
			return nil, newParseError(ParseErrorKeyNotObject, fmt.Sprintf("'keys' must contain objects only, entry #%d is not", i), nil)
		}
		var o object
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, newParseError(ParseErrorKeyNotObject, fmt.Sprintf("entry #%d of 'keys' is not an object", i), err)
		}

		c, err := classifyKey(o)
		if err != nil {
			kid, _ := o.stringField("kid")
			set.diagnostics = append(set.diagnostics, &KeyError{Index: i, KeyID: kid, Err: err})
			continue
		}
		switch {
		case c.signer != nil:
			set.signers[c.kid] = c.signer
		case c.verifier != nil:
			set.verifiers[c.kid] = c.verifier
		}
	}
	return set, nil
}

// FindSigner returns the signer for kid, or an error wrapping ErrNotFound.
func (s *KeySet) FindSigner(kid string) (Signer, error) {
	if signer, ok := s.signers[kid]; ok {
		return signer, nil
	}
	return nil, fmt.Errorf("signer with kid %q: %w", kid, ErrNotFound)
}

// FindVerifier returns the verifier for kid, or an error wrapping ErrNotFound.
func (s *KeySet) FindVerifier(kid string) (Verifier, error) {
	if verifier, ok := s.verifiers[kid]; ok {
		return verifier, nil
	}
	return nil, fmt.Errorf("verifier with kid %q: %w", kid, ErrNotFound)
}

// Signers returns a copy of the signer table.
func (s *KeySet) Signers() map[string]Signer {
	return maps.Clone(s.signers)
}

// Verifiers returns a copy of the verifier table.
func (s *KeySet) Verifiers() map[string]Verifier {
	return maps.Clone(s.verifiers)
}

// SignerIDs returns the sorted key IDs of the signers.
func (s *KeySet) SignerIDs() []string {
	return slices.Sorted(maps.Keys(s.signers))
}

// VerifierIDs returns the sorted key IDs of the verifiers.
func (s *KeySet) VerifierIDs() []string {
	return slices.Sorted(maps.Keys(s.verifiers))
}

// Diagnostics returns why key objects of the document were left out, in
// document order.
func (s *KeySet) Diagnostics() []*KeyError {
	return slices.Clone(s.diagnostics)
}
