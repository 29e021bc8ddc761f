package apierr

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// StatusCertificateFailed is the non-standard status Proxmox returns when its
// proxy fails to verify a peer certificate.
const StatusCertificateFailed = 595

// Environment values that change normalizer suggestions.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Envelope is the uniform error shape every caller sees.
type Envelope struct {
	HTTPStatus int    `json:"status"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Normalizer maps raw failures to envelopes.
type Normalizer struct {
	environment string
}

// NewNormalizer creates a normalizer for the given deployment environment.
func NewNormalizer(environment string) *Normalizer {
	if environment == "" {
		environment = EnvProduction
	}
	return &Normalizer{environment: environment}
}

// Normalize maps err to an Envelope. A nil error maps to 200.
func (n *Normalizer) Normalize(err error) Envelope {
	if err == nil {
		return Envelope{HTTPStatus: http.StatusOK, Message: "OK"}
	}

	if isConnectionRefused(err) {
		return Envelope{
			HTTPStatus: http.StatusServiceUnavailable,
			Message:    "Connection refused",
			Suggestion: "Check that the hypervisor service is running and that the firewall allows the API port.",
		}
	}

	if isTimeout(err) {
		return Envelope{
			HTTPStatus: http.StatusGatewayTimeout,
			Message:    "Hypervisor request timed out",
			Suggestion: "The backend did not answer in time; retry the operation.",
		}
	}

	// Auth errors may join the statuses of several failed attempts; only a
	// 403 among them changes the outcome.
	if KindOf(err) == KindAuth {
		if StatusOf(err) == http.StatusForbidden {
			return n.fromStatus(http.StatusForbidden, err)
		}
		return n.fromStatus(http.StatusUnauthorized, err)
	}

	if status := StatusOf(err); status >= http.StatusBadRequest {
		return n.fromStatus(status, err)
	}

	switch KindOf(err) {
	case KindValidation:
		return Envelope{HTTPStatus: http.StatusBadRequest, Message: err.Error()}
	case KindNotFound:
		return Envelope{HTTPStatus: http.StatusNotFound, Message: err.Error()}
	case KindUnreachable:
		return Envelope{
			HTTPStatus: http.StatusServiceUnavailable,
			Message:    err.Error(),
			Suggestion: "Check network connectivity to the hypervisor.",
		}
	case KindRejected:
		return Envelope{HTTPStatus: http.StatusBadGateway, Message: err.Error()}
	}

	return Envelope{HTTPStatus: http.StatusInternalServerError, Message: err.Error()}
}

func (n *Normalizer) fromStatus(status int, err error) Envelope {
	switch status {
	case http.StatusUnauthorized:
		return Envelope{
			HTTPStatus: status,
			Message:    "Authentication failed",
			Suggestion: "Verify the hypervisor credentials (username, token name and secret).",
		}
	case http.StatusForbidden:
		return Envelope{
			HTTPStatus: status,
			Message:    "Permission denied",
			Suggestion: "Check that the user or API token has the required role privileges.",
		}
	case StatusCertificateFailed:
		suggestion := "Install a certificate signed by a trusted authority on the hypervisor."
		if n.environment == EnvDevelopment {
			suggestion = "Enable insecureTLS on this hypervisor record, or install a trusted certificate."
		}
		return Envelope{
			HTTPStatus: status,
			Message:    "Certificate verification failed",
			Suggestion: suggestion,
		}
	}
	return Envelope{HTTPStatus: status, Message: err.Error()}
}

func isConnectionRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
