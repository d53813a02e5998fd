// Package httpapi serves the public half of the key set and a token
// introspection endpoint over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zarvd/jwks-signer/internal/authn"
	"github.com/zarvd/jwks-signer/internal/key"
)

const JWKSPath = "/.well-known/jwks.json"

type Server struct {
	Router chi.Router
	logger *slog.Logger
	km     key.KeyManager
}

func NewServer(logger *slog.Logger, km key.KeyManager, authenticator *authn.Authenticator) *Server {
	s := &Server{logger: logger, km: km}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get(JWKSPath, s.jwks)
	r.With(authn.Middleware(logger, authenticator)).Get("/v1/whoami", s.whoami)

	s.Router = r
	return s
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving http", slog.String("address", l.Addr().String()))
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthResponse struct {
	Status       string    `json:"status"`
	LastLoadedAt time.Time `json:"lastLoadedAt"`
	Signers      int       `json:"signers"`
	Verifiers    int       `json:"verifiers"`
	Diagnostics  int       `json:"diagnostics"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	set := s.km.KeySet()
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		LastLoadedAt: s.km.LastLoadedAt().UTC(),
		Signers:      len(set.SignerIDs()),
		Verifiers:    len(set.VerifierIDs()),
		Diagnostics:  len(set.Diagnostics()),
	})
}

func (s *Server) jwks(w http.ResponseWriter, _ *http.Request) {
	doc, err := s.km.KeySet().PublicJWKS()
	if err != nil {
		s.logger.Error("failed to format public key set", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int64(s.km.Expiration().Seconds())/2))
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) whoami(w http.ResponseWriter, r *http.Request) {
	claims, _ := authn.ClaimsFromContext(r.Context())
	s.writeJSON(w, http.StatusOK, claims)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", slog.Any("error", err))
	}
}
