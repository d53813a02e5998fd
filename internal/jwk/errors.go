package jwk

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by KeySet lookups for an unknown key ID.
	ErrNotFound = errors.New("key not found")
	// ErrUnsupportedKeyType is reported for keys whose "kty" is not handled.
	ErrUnsupportedKeyType = errors.New("unsupported key type")
	// ErrUnsupportedAlgorithm is reported for keys whose "alg" is not handled.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	// ErrInvalidKey is reported when key parameters do not form a usable key.
	ErrInvalidKey = errors.New("invalid key")
	// ErrVerification is returned when a signature does not match.
	ErrVerification = errors.New("signature verification failed")
)

// ParseErrorType classifies document-level failures.
type ParseErrorType string

const (
	ParseErrorInvalidJSON      ParseErrorType = "InvalidJSON"
	ParseErrorMissingKeysField ParseErrorType = "MissingKeysField"
	ParseErrorKeysNotArray     ParseErrorType = "KeysNotArray"
	ParseErrorKeyNotObject     ParseErrorType = "KeyNotObject"
)

// ParseError is returned by Parse when the document itself is malformed.
// No KeySet is produced alongside it.
type ParseError struct {
	Type    ParseErrorType
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(typ ParseErrorType, message string, err error) *ParseError {
	return &ParseError{Type: typ, Message: message, Err: err}
}

// FieldErrorKind classifies why a field could not be extracted.
type FieldErrorKind string

const (
	FieldMissing      FieldErrorKind = "FieldMissing"
	FieldTypeMismatch FieldErrorKind = "TypeMismatch"
	FieldDecodeError  FieldErrorKind = "DecodeError"
)

// FieldError reports a field of a key object that is absent, of the wrong
// JSON type, or not valid base64url.
type FieldError struct {
	Field string
	Kind  FieldErrorKind
	Err   error
}

func (e *FieldError) Error() string {
	switch e.Kind {
	case FieldMissing:
		return fmt.Sprintf("failed to locate %q in JWK", e.Field)
	case FieldTypeMismatch:
		return fmt.Sprintf("field %q is not a string", e.Field)
	default:
		return fmt.Sprintf("failed to base64url-decode %q: %v", e.Field, e.Err)
	}
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// IsFieldMissing reports whether err is a FieldError for an absent field.
func IsFieldMissing(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe) && fe.Kind == FieldMissing
}

// KeyError is a non-fatal diagnostic for one entry of the "keys" array that
// was left out of the KeySet.
type KeyError struct {
	// Index is the position of the entry in the "keys" array.
	Index int
	// KeyID is empty when the entry has no usable "kid".
	KeyID string
	Err   error
}

func (e *KeyError) Error() string {
	if e.KeyID == "" {
		return fmt.Sprintf("key #%d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("key #%d (kid %q): %v", e.Index, e.KeyID, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}
