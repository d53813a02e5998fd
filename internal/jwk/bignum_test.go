package jwk

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustObject(t *testing.T, s string) object {
	t.Helper()
	var o object
	require.NoError(t, json.Unmarshal([]byte(s), &o))
	return o
}

func TestObject_BigIntField(t *testing.T) {
	t.Parallel()

	o := mustObject(t, `{"e":"AQAB","padded":"AQAB====","num":65537,"null":null,"bad":"a(bc","empty":""}`)

	t.Run("decodes big-endian value", func(t *testing.T) {
		v, err := o.bigIntField("e")
		require.NoError(t, err)
		require.Equal(t, big.NewInt(65537), v)
	})

	t.Run("accepts padding", func(t *testing.T) {
		v, err := o.bigIntField("padded")
		require.NoError(t, err)
		require.Equal(t, int64(65537), v.Int64())
	})

	t.Run("empty string is zero", func(t *testing.T) {
		v, err := o.bigIntField("empty")
		require.NoError(t, err)
		require.Zero(t, v.Sign())
	})

	for _, tc := range []struct {
		field string
		kind  FieldErrorKind
	}{
		{field: "missing", kind: FieldMissing},
		{field: "num", kind: FieldTypeMismatch},
		{field: "null", kind: FieldTypeMismatch},
		{field: "bad", kind: FieldDecodeError},
	} {
		t.Run(tc.field, func(t *testing.T) {
			_, err := o.bigIntField(tc.field)
			require.Error(t, err)
			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			require.Equal(t, tc.kind, fe.Kind)
			require.Equal(t, tc.field, fe.Field)
			require.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestExtractParams(t *testing.T) {
	t.Parallel()

	o := mustObject(t, `{"n":"AQ","e":"AQAB","p":"Ag","q":"#"}`)

	t.Run("required failure aborts", func(t *testing.T) {
		_, err := extractParams(o, []string{"n", "e", "d"}, nil)
		require.True(t, IsFieldMissing(err))
	})

	t.Run("optional failures are absent", func(t *testing.T) {
		p, err := extractParams(o, []string{"n", "e"}, []string{"p", "q", "dp"})
		require.NoError(t, err)
		require.Equal(t, int64(1), p.get("n").Int64())
		require.Equal(t, int64(2), p.get("p").Int64())
		require.Nil(t, p.get("q"))
		require.Nil(t, p.get("dp"))
		require.Contains(t, p, "q")
		require.Contains(t, p, "dp")
		require.True(t, p.all("n", "e", "p"))
		require.False(t, p.all("p", "q"))
	})
}
