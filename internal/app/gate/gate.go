package gate

import (
	"errors"
	"log/slog"
	"strings"

	"ghostrecon/internal/core/contracts"
	"ghostrecon/internal/platform/metrics"
)

// CloseCodeRejected is the websocket close code sent when a session is refused.
const CloseCodeRejected = 4001

var ErrRejected = errors.New("session rejected")

// Gate validates the credential presented when a realtime session opens.
type Gate struct {
	verifier contracts.CredentialVerifier
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewGate(log *slog.Logger, verifier contracts.CredentialVerifier, m *metrics.Metrics) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{verifier: verifier, metrics: m, log: log}
}

// Authenticate returns the user id the credential was issued to, or ErrRejected.
func (g *Gate) Authenticate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return g.reject("empty credential", nil)
	}
	userID, err := g.verifier.VerifyCredential(raw)
	if err != nil {
		return g.reject("verification failed", err)
	}
	if userID == "" {
		return g.reject("missing subject", nil)
	}
	return userID, nil
}

func (g *Gate) reject(reason string, cause error) (string, error) {
	g.metrics.SessionRejected()
	if cause != nil {
		g.log.Info("gate - authenticate - rejected", "reason", reason, "err", cause)
	} else {
		g.log.Info("gate - authenticate - rejected", "reason", reason)
	}
	return "", ErrRejected
}
