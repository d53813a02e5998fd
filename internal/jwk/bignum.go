package jwk

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"strings"
)

// object is a JSON object whose members are decoded on demand.
type object map[string]json.RawMessage

// firstByte returns the first non-whitespace byte of raw, or 0.
func firstByte(raw json.RawMessage) byte {
	raw = bytes.TrimLeft(raw, " \t\r\n")
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func (o object) has(name string) bool {
	_, ok := o[name]
	return ok
}

// stringField returns the string member name of o.
func (o object) stringField(name string) (string, error) {
	raw, ok := o[name]
	if !ok {
		return "", &FieldError{Field: name, Kind: FieldMissing}
	}
	if firstByte(raw) != '"' {
		return "", &FieldError{Field: name, Kind: FieldTypeMismatch}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &FieldError{Field: name, Kind: FieldTypeMismatch, Err: err}
	}
	return s, nil
}

// bigIntField decodes the base64url string member name of o as a big-endian
// unsigned integer.
func (o object) bigIntField(name string) (*big.Int, error) {
	s, err := o.stringField(name)
	if err != nil {
		return nil, err
	}
	b, err := decodeBase64URL(s)
	if err != nil {
		return nil, &FieldError{Field: name, Kind: FieldDecodeError, Err: err}
	}
	return new(big.Int).SetBytes(b), nil
}

// decodeBase64URL accepts both padded and unpadded input.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func encodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// params maps parameter names to their values. An optional parameter that
// could not be extracted is present with a nil value.
type params map[string]*big.Int

// get returns the value of name, or nil when it is absent.
func (p params) get(name string) *big.Int {
	return p[name]
}

// all reports whether every one of names has a value.
func (p params) all(names ...string) bool {
	for _, name := range names {
		if p[name] == nil {
			return false
		}
	}
	return true
}

// extractParams decodes the required and optional numeric members of o.
// The first required member that cannot be decoded aborts the extraction.
func extractParams(o object, required, optional []string) (params, error) {
	p := make(params, len(required)+len(optional))
	for _, name := range required {
		v, err := o.bigIntField(name)
		if err != nil {
			return nil, err
		}
		p[name] = v
	}
	for _, name := range optional {
		v, err := o.bigIntField(name)
		if err != nil {
			p[name] = nil
			continue
		}
		p[name] = v
	}
	return p, nil
}
