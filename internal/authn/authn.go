// Package authn issues and authenticates JWTs with keys from a jwk.KeySet.
package authn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zarvd/jwks-signer/internal/jwk"
	"github.com/zarvd/jwks-signer/internal/metrics"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrUnknownKey   = errors.New("token signed by an unknown key")
	ErrInvalidToken = errors.New("invalid token")
)

// KeySetProvider returns the key set currently in use.
type KeySetProvider interface {
	KeySet() *jwk.KeySet
}

// Issuer mints tokens signed by a signer of the key set.
type Issuer struct {
	keys KeySetProvider
}

func NewIssuer(keys KeySetProvider) *Issuer {
	return &Issuer{keys: keys}
}

// Issue signs claims with the signer registered under kid.
func (i *Issuer) Issue(kid string, claims jwt.Claims) (string, error) {
	signer, err := i.keys.KeySet().FindSigner(kid)
	if err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(signingMethod{alg: signer.Algorithm()}, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(signer)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

type Config struct {
	// Issuer is the required "iss" claim, if set.
	Issuer string
	// Audience is the required "aud" claim, if set.
	Audience string
	// Leeway is the clock skew tolerated on time based claims.
	Leeway time.Duration
}

// Authenticator verifies tokens against the verifiers of the key set.
type Authenticator struct {
	keys      KeySetProvider
	parser    *jwt.Parser
	validator *jwt.Validator
}

func NewAuthenticator(keys KeySetProvider, cfg Config) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Authenticator{
		keys:      keys,
		parser:    jwt.NewParser(),
		validator: jwt.NewValidator(opts...),
	}
}

// Authenticate verifies the signature and the registered claims of
// tokenString and returns its claims.
func (a *Authenticator) Authenticate(tokenString string) (*jwt.RegisteredClaims, error) {
	claims, err := a.authenticate(tokenString)
	metrics.RecordAuthentication(err)
	return claims, err
}

func (a *Authenticator) authenticate(tokenString string) (*jwt.RegisteredClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	claims := &jwt.RegisteredClaims{}
	token, parts, err := a.parser.ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("%w: kid not found in token header", ErrInvalidToken)
	}
	alg, _ := token.Header["alg"].(string)

	verifier, err := a.verifier(kid)
	if err != nil {
		return nil, err
	}
	signature, err := a.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	method := signingMethod{alg: alg}
	if err := method.Verify(strings.Join(parts[:2], "."), signature, verifier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if err := a.validator.Validate(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// verifier prefers a dedicated verifier and falls back to a signer that can
// check its own signatures.
func (a *Authenticator) verifier(kid string) (jwk.Verifier, error) {
	set := a.keys.KeySet()
	if verifier, err := set.FindVerifier(kid); err == nil {
		return verifier, nil
	}
	if signer, err := set.FindSigner(kid); err == nil {
		if verifier, ok := signer.(jwk.Verifier); ok {
			return verifier, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
}
