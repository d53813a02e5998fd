package server

import (
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zarvd/jwks-signer/internal/key"
)

// signError converts a key manager failure into a gRPC status.
func signError(logger *slog.Logger, err error) error {
	logger.Error("failed to sign JWT", slog.Any("error", err))
	if errors.Is(err, key.ErrNoSigner) {
		return status.Errorf(codes.FailedPrecondition, "no signing key is configured")
	}
	return status.Errorf(codes.Internal, "not able to sign JWT")
}

// refreshHintSeconds tells the API server how often to fetch keys.
func refreshHintSeconds(km key.KeyManager) int64 {
	return int64(km.Expiration().Seconds() / 2)
}

func keyIDs(publicKeys []*key.PublicKey) []string {
	rv := make([]string, 0, len(publicKeys))
	for _, publicKey := range publicKeys {
		rv = append(rv, publicKey.KeyID)
	}
	return rv
}
