package jwk

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	generateKeyOnce      = sync.OnceValues(func() (*rsa.PrivateKey, error) { return rsa.GenerateKey(rand.Reader, 2048) })
	generateOtherKeyOnce = sync.OnceValues(func() (*rsa.PrivateKey, error) { return rsa.GenerateKey(rand.Reader, 2048) })
)

func testKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	key, err := generateKeyOnce()
	require.NoError(t, err)
	return key
}

func otherTestKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	key, err := generateOtherKeyOnce()
	require.NoError(t, err)
	return key
}

func privateJWK(t testing.TB, kid string, key *rsa.PrivateKey) map[string]any {
	t.Helper()
	jwk, err := FormatPrivateKey(kid, "", key)
	require.NoError(t, err)
	return toMap(t, jwk)
}

func publicJWK(t testing.TB, kid string, key *rsa.PublicKey) map[string]any {
	t.Helper()
	jwk, err := FormatPublicKey(kid, "", key)
	require.NoError(t, err)
	return toMap(t, jwk)
}

func toMap(t testing.TB, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func document(t testing.TB, keys ...any) []byte {
	t.Helper()
	if keys == nil {
		keys = []any{}
	}
	b, err := json.Marshal(map[string]any{"keys": keys})
	require.NoError(t, err)
	return b
}

func readFixture(t testing.TB, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

// without returns a copy of m lacking the given members.
func without(m map[string]any, names ...string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, name := range names {
		delete(out, name)
	}
	return out
}
