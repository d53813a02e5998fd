package authn

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/zarvd/jwks-signer/internal/jwk"
)

var generateKey = sync.OnceValues(func() (*rsa.PrivateKey, error) { return rsa.GenerateKey(rand.Reader, 2048) })

type staticKeys struct {
	set *jwk.KeySet
}

func (s staticKeys) KeySet() *jwk.KeySet { return s.set }

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := generateKey()
	require.NoError(t, err)
	return key
}

func keySet(t *testing.T, keys ...*jwk.JWK) staticKeys {
	t.Helper()
	doc := jwk.JWKS{}
	for _, k := range keys {
		doc.Keys = append(doc.Keys, *k)
	}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	set, err := jwk.Parse(b)
	require.NoError(t, err)
	require.Empty(t, set.Diagnostics())
	return staticKeys{set: set}
}

func signingKeys(t *testing.T) staticKeys {
	t.Helper()
	private, err := jwk.FormatPrivateKey("k1", "RS256", testKey(t))
	require.NoError(t, err)
	return keySet(t, private)
}

func verificationKeys(t *testing.T) staticKeys {
	t.Helper()
	public, err := jwk.FormatPublicKey("k1", "RS256", &testKey(t).PublicKey)
	require.NoError(t, err)
	return keySet(t, public)
}

func validClaims() *jwt.RegisteredClaims {
	now := time.Now()
	return &jwt.RegisteredClaims{
		Issuer:    "https://cluster.example.com",
		Subject:   "agent-1",
		Audience:  jwt.ClaimStrings{"cluster-manager"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
}

func TestIssueAndAuthenticate(t *testing.T) {
	t.Parallel()

	signing := signingKeys(t)
	issuer := NewIssuer(signing)
	cfg := Config{Issuer: "https://cluster.example.com", Audience: "cluster-manager"}

	token, err := issuer.Issue("k1", validClaims())
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	t.Run("with a verifier", func(t *testing.T) {
		claims, err := NewAuthenticator(verificationKeys(t), cfg).Authenticate(token)
		require.NoError(t, err)
		require.Equal(t, "agent-1", claims.Subject)
	})

	t.Run("with the signer", func(t *testing.T) {
		claims, err := NewAuthenticator(signing, cfg).Authenticate(token)
		require.NoError(t, err)
		require.Equal(t, "agent-1", claims.Subject)
	})

	t.Run("header", func(t *testing.T) {
		parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
		require.NoError(t, err)
		require.Equal(t, "k1", parsed.Header["kid"])
		require.Equal(t, "RS256", parsed.Header["alg"])
	})

	t.Run("verifies with golang-jwt", func(t *testing.T) {
		parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
			return &testKey(t).PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		require.NoError(t, err)
		require.True(t, parsed.Valid)
	})

	t.Run("unknown signing key", func(t *testing.T) {
		_, err := issuer.Issue("missing", validClaims())
		require.ErrorIs(t, err, jwk.ErrNotFound)
	})
}

func TestAuthenticate_Rejects(t *testing.T) {
	t.Parallel()

	signing := signingKeys(t)
	issuer := NewIssuer(signing)
	authenticator := NewAuthenticator(verificationKeys(t), Config{
		Issuer:   "https://cluster.example.com",
		Audience: "cluster-manager",
	})

	issue := func(t *testing.T, mutate func(*jwt.RegisteredClaims)) string {
		t.Helper()
		claims := validClaims()
		mutate(claims)
		token, err := issuer.Issue("k1", claims)
		require.NoError(t, err)
		return token
	}

	t.Run("empty token", func(t *testing.T) {
		_, err := authenticator.Authenticate("")
		require.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := authenticator.Authenticate("not.a-token")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	for name, mutate := range map[string]func(*jwt.RegisteredClaims){
		"expired":        func(c *jwt.RegisteredClaims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) },
		"no expiry":      func(c *jwt.RegisteredClaims) { c.ExpiresAt = nil },
		"wrong issuer":   func(c *jwt.RegisteredClaims) { c.Issuer = "https://other.example.com" },
		"wrong audience": func(c *jwt.RegisteredClaims) { c.Audience = jwt.ClaimStrings{"other"} },
		"not yet valid":  func(c *jwt.RegisteredClaims) { c.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour)) },
	} {
		t.Run(name, func(t *testing.T) {
			_, err := authenticator.Authenticate(issue(t, mutate))
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	t.Run("tampered payload", func(t *testing.T) {
		token := issue(t, func(*jwt.RegisteredClaims) {})
		other := issue(t, func(c *jwt.RegisteredClaims) { c.Subject = "admin" })
		parts, otherParts := strings.Split(token, "."), strings.Split(other, ".")
		forged := parts[0] + "." + otherParts[1] + "." + parts[2]
		_, err := authenticator.Authenticate(forged)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown kid", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
		token.Header["kid"] = "k2"
		signed, err := token.SignedString(testKey(t))
		require.NoError(t, err)
		_, err = authenticator.Authenticate(signed)
		require.ErrorIs(t, err, ErrUnknownKey)
	})

	t.Run("missing kid", func(t *testing.T) {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims()).SignedString(testKey(t))
		require.NoError(t, err)
		_, err = authenticator.Authenticate(signed)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("algorithm other than the key's", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodRS512, validClaims())
		token.Header["kid"] = "k1"
		signed, err := token.SignedString(testKey(t))
		require.NoError(t, err)
		_, err = authenticator.Authenticate(signed)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
		token.Header["kid"] = "k1"
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = authenticator.Authenticate(signed)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}
