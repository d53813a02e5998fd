package key

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zarvd/jwks-signer/internal/jwk"
	"github.com/zarvd/jwks-signer/internal/metrics"
)

var _ KeyManager = (*jwksKeyManager)(nil)

var ErrNoSigner = errors.New("no active signing key")

// snapshot is everything derived from one load of the key set. It is never
// modified after being published.
type snapshot struct {
	set        *jwk.KeySet
	keyID      string
	signer     jwk.Signer
	publicKeys []*PublicKey
	loadedAt   time.Time
}

type jwksKeyManager struct {
	logger *slog.Logger

	source       Source
	signingKeyID string
	expiry       time.Duration
	current      atomic.Pointer[snapshot]
	cancel       context.CancelFunc
}

// NewKeyManager loads the key set from cfg.Source and, when
// cfg.ReloadInterval is set, keeps reloading it until Close is called.
func NewKeyManager(ctx context.Context, logger *slog.Logger, cfg Config) (KeyManager, error) {
	if cfg.Source == nil {
		return nil, errors.New("key set source is required")
	}
	k := &jwksKeyManager{
		logger:       logger,
		source:       cfg.Source,
		signingKeyID: cfg.SigningKeyID,
		expiry:       cfg.Expiration,
	}
	if err := k.reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to load key set: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	k.cancel = cancel
	if cfg.ReloadInterval > 0 {
		go k.startReloadLoop(loopCtx, cfg.ReloadInterval)
	}

	return k, nil
}

func (s *jwksKeyManager) Close() error {
	s.cancel()
	return nil
}

func (s *jwksKeyManager) Sign(ctx context.Context, encodedClaims string) (*SignedToken, error) {
	token, err := s.sign(encodedClaims)
	metrics.RecordSign(err)
	return token, err
}

func (s *jwksKeyManager) sign(encodedClaims string) (*SignedToken, error) {
	active := s.current.Load()
	if active.signer == nil {
		return nil, ErrNoSigner
	}

	header := map[string]string{
		"alg": active.signer.Algorithm(),
		"typ": "JWT",
		"kid": active.keyID,
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	headerB64 := base64.RawURLEncoding.EncodeToString(headerJSON)

	signature, err := active.signer.Sign([]byte(headerB64 + "." + encodedClaims))
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT with key %q: %w", active.keyID, err)
	}

	return &SignedToken{
		KeyID:     active.keyID,
		Header:    headerB64,
		Payload:   encodedClaims,
		Signature: base64.RawURLEncoding.EncodeToString(signature),
	}, nil
}

func (s *jwksKeyManager) PublicKeys() []*PublicKey {
	return s.current.Load().publicKeys
}

func (s *jwksKeyManager) KeySet() *jwk.KeySet {
	return s.current.Load().set
}

func (s *jwksKeyManager) Expiration() time.Duration {
	return s.expiry
}

func (s *jwksKeyManager) LastLoadedAt() time.Time {
	return s.current.Load().loadedAt
}

func (s *jwksKeyManager) startReloadLoop(ctx context.Context, d time.Duration) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reload loop stopped")
			return
		case <-ticker.C:
			if err := s.reload(ctx); err != nil {
				s.logger.Error("failed to reload key set, keeping the previous one", slog.Any("error", err))
			}
		}
	}
}

// reload reads and parses the key set and publishes it. On failure the
// previously published key set stays in place.
func (s *jwksKeyManager) reload(ctx context.Context) error {
	next, err := s.load(ctx)
	if err != nil {
		metrics.RecordKeySetLoad(err, 0, 0, 0)
		return err
	}

	diagnostics := next.set.Diagnostics()
	for _, d := range diagnostics {
		s.logger.Warn("skipped key", slog.Int("index", d.Index), slog.String("key-id", d.KeyID), slog.Any("error", d.Err))
	}
	metrics.RecordKeySetLoad(nil, len(next.set.SignerIDs()), len(next.set.VerifierIDs()), len(diagnostics))

	s.current.Store(next)
	s.logger.Info("Loaded key set",
		slog.String("active-key-id", next.keyID),
		slog.Any("signer-ids", next.set.SignerIDs()),
		slog.Any("verifier-ids", next.set.VerifierIDs()),
		slog.Int("num-skipped", len(diagnostics)),
	)
	return nil
}

func (s *jwksKeyManager) load(ctx context.Context) (*snapshot, error) {
	document, err := s.source(ctx)
	if err != nil {
		return nil, err
	}
	set, err := jwk.Parse(document)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key set: %w", err)
	}

	next := &snapshot{set: set, loadedAt: time.Now()}
	next.keyID, next.signer, err = s.selectSigner(set)
	if err != nil {
		return nil, err
	}
	next.publicKeys, err = publicKeys(set)
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *jwksKeyManager) selectSigner(set *jwk.KeySet) (string, jwk.Signer, error) {
	if s.signingKeyID != "" {
		signer, err := set.FindSigner(s.signingKeyID)
		if err != nil {
			return "", nil, fmt.Errorf("configured signing key is unavailable: %w", err)
		}
		return s.signingKeyID, signer, nil
	}

	ids := set.SignerIDs()
	if len(ids) != 1 {
		s.logger.Warn("no signing key selected", slog.Int("num-signers", len(ids)))
		return "", nil, nil
	}
	signer, err := set.FindSigner(ids[0])
	if err != nil {
		return "", nil, err
	}
	return ids[0], signer, nil
}

// publicKeys returns the DER form of every key's public half, signers
// first. A verifier sharing a signer's key ID is not repeated.
func publicKeys(set *jwk.KeySet) ([]*PublicKey, error) {
	signers, verifiers := set.Signers(), set.Verifiers()
	rv := make([]*PublicKey, 0, len(signers)+len(verifiers))
	add := func(kid string, pub crypto.PublicKey) error {
		der, err := x509.MarshalPKIXPublicKey(pub)
		if err != nil {
			return fmt.Errorf("failed to marshal public key %q: %w", kid, err)
		}
		rv = append(rv, &PublicKey{KeyID: kid, Key: der})
		return nil
	}

	for _, kid := range set.SignerIDs() {
		if err := add(kid, signers[kid].Public()); err != nil {
			return nil, err
		}
	}
	for _, kid := range set.VerifierIDs() {
		if _, ok := signers[kid]; ok {
			continue
		}
		if err := add(kid, verifiers[kid].Public()); err != nil {
			return nil, err
		}
	}
	return rv, nil
}
