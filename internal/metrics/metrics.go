package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// ResultSuccess indicates a successful operation
	ResultSuccess = "success"
	// ResultError indicates a failed operation
	ResultError = "error"

	RoleSigner   = "signer"
	RoleVerifier = "verifier"
)

var (
	// KeySetLoadsTotal counts attempts to load a key set document
	KeySetLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jwks_signer_keyset_loads_total",
			Help: "Total number of key set loads",
		},
		[]string{"result"},
	)

	// KeySetKeys is the number of usable keys in the current key set
	KeySetKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jwks_signer_keyset_keys",
			Help: "Number of keys in the current key set by role",
		},
		[]string{"role"}, // role: signer, verifier
	)

	// KeyDiagnosticsTotal counts key objects left out of a loaded key set
	KeyDiagnosticsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jwks_signer_key_diagnostics_total",
			Help: "Total number of key objects skipped while loading key sets",
		},
	)

	// SignTotal counts signing operations
	SignTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jwks_signer_sign_total",
			Help: "Total number of signing operations",
		},
		[]string{"result"},
	)

	// AuthenticationsTotal counts bearer token authentications
	AuthenticationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jwks_signer_authentications_total",
			Help: "Total number of token authentications",
		},
		[]string{"result"},
	)
)

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// RecordKeySetLoad records a key set load along with the size of the loaded set
func RecordKeySetLoad(err error, signers, verifiers, diagnostics int) {
	KeySetLoadsTotal.WithLabelValues(result(err)).Inc()
	if err != nil {
		return
	}
	KeySetKeys.WithLabelValues(RoleSigner).Set(float64(signers))
	KeySetKeys.WithLabelValues(RoleVerifier).Set(float64(verifiers))
	KeyDiagnosticsTotal.Add(float64(diagnostics))
}

// RecordSign records a signing operation
func RecordSign(err error) {
	SignTotal.WithLabelValues(result(err)).Inc()
}

// RecordAuthentication records a token authentication
func RecordAuthentication(err error) {
	AuthenticationsTotal.WithLabelValues(result(err)).Inc()
}
