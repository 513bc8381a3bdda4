package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/bourkey/revalidate-webhook/internal/models"
	"github.com/bourkey/revalidate-webhook/pkg/auth"
	"github.com/bourkey/revalidate-webhook/pkg/config"
	"github.com/bourkey/revalidate-webhook/pkg/dispatch"
	"github.com/bourkey/revalidate-webhook/pkg/logging"
	"github.com/bourkey/revalidate-webhook/pkg/metrics"
	"github.com/bourkey/revalidate-webhook/pkg/policy"
	"github.com/bourkey/revalidate-webhook/pkg/webhook/parsers"
	go_json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// Response messages
const (
	msgInvalidSecret     = "Invalid secret"
	msgInvalidSignature  = "Invalid signature"
	msgInvalidJSON       = "Invalid JSON payload"
	msgMissingType       = "Missing _type in payload"
	msgBodyTooLarge      = "Request body too large"
	msgUnreadableBody    = "Failed to read request body"
	msgErrorRevalidating = "Error revalidating"
	msgProbeReady        = "Webhook endpoint is working!"
)

// isoMillis matches the CMS's own timestamp rendering
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type errorResponse struct {
	Message string   `json:"message"`
	Error   string   `json:"error,omitempty"`
	Failed  []string `json:"failed,omitempty"`
}

type probeResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Ready     bool   `json:"ready"`
}

type revalidateResponse struct {
	Revalidated  bool     `json:"revalidated"`
	Now          int64    `json:"now"`
	Timestamp    string   `json:"timestamp"`
	Type         string   `json:"type"`
	Slug         *string  `json:"slug"`
	Targets      []string `json:"targets"`
	ReceivedKeys []string `json:"receivedKeys"`
	Failed       []string `json:"failed,omitempty"`
}

// handleProbe answers the GET liveness probe. It never invalidates anything.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if !auth.CheckProbeSecret(r, s.config.Auth.Secret) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: msgInvalidSecret})
		return
	}

	writeJSON(w, http.StatusOK, probeResponse{
		Message:   msgProbeReady,
		Timestamp: s.now().UTC().Format(isoMillis),
		Ready:     true,
	})
}

// handleRevalidate authenticates a change notification, resolves its
// targets and invalidates them
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	meta := parsers.ParseWebhookMeta(r.Header)
	log := logging.LogWithRequestID(s.logger, requestIDFrom(r.Context())).WithFields(logrus.Fields{
		"operation":       meta.Operation,
		"document_id":     meta.DocumentID,
		"dataset":         meta.Dataset,
		"project_id":      meta.ProjectID,
		"idempotency_key": meta.IdempotencyKey,
	})

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			log.WithField("limit_bytes", maxErr.Limit).Warn("Request body too large")
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Message: msgBodyTooLarge})
			return
		}
		log.WithError(err).Warn("Failed to read request body")
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: msgUnreadableBody})
		return
	}

	// Authenticated | 401
	if err := s.authenticator.Authenticate(r, body); err != nil {
		reason := authFailureReason(err)
		metrics.RecordAuthFailure(string(s.authenticator.Mode()), reason)
		log.WithFields(logrus.Fields{
			"auth_mode":        s.authenticator.Mode(),
			"reason":           reason,
			"signature_header": r.Header.Get(s.signatureHeader()) != "",
		}).Warn("Webhook authentication failed")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: s.unauthorizedMessage()})
		return
	}

	// Parsed | 400
	event, err := parsers.ParseChangeEvent(body)
	if err != nil {
		message := msgMissingType
		if errors.Is(err, parsers.ErrInvalidJSON) {
			message = msgInvalidJSON
		}
		log.WithError(err).Warn("Rejected webhook payload")
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: message})
		return
	}

	log = log.WithFields(logrus.Fields{
		"type":          event.Type,
		"slug":          event.Slug,
		"received_keys": event.ReceivedKeys,
	})
	metrics.RecordChangeEvent(documentTypeLabel(event.Type))

	// Resolved
	targets := policy.Resolve(*event)
	log.WithField("targets", targetStrings(targets)).Info("Resolved invalidation targets")

	// Dispatched
	report, err := s.dispatcher.Dispatch(r.Context(), targets)
	if err != nil {
		log.WithField("failed", report.FailedTargets()).WithError(err).Error("Revalidation failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Message: msgErrorRevalidating,
			Error:   dispatch.ErrDispatchFailed.Error(),
			Failed:  report.FailedTargets(),
		})
		return
	}

	if report.HasFailures() {
		log.WithField("failed", report.FailedTargets()).Warn("Revalidation partially failed")
	} else {
		log.Info("Revalidation completed")
	}

	now := s.now()
	resp := revalidateResponse{
		Revalidated:  true,
		Now:          now.UnixMilli(),
		Timestamp:    now.UTC().Format(isoMillis),
		Type:         event.Type,
		Targets:      targetStrings(targets),
		ReceivedKeys: event.ReceivedKeys,
	}
	if event.HasSlug() {
		slug := event.Slug
		resp.Slug = &slug
	}
	if report.HasFailures() {
		resp.Failed = report.FailedTargets()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) signatureHeader() string {
	if s.config.Auth.SignatureHeader != "" {
		return s.config.Auth.SignatureHeader
	}
	return config.DefaultSignatureHeader
}

func (s *Server) unauthorizedMessage() string {
	if s.authenticator.Mode() == config.AuthModeSignature {
		return msgInvalidSignature
	}
	return msgInvalidSecret
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return "missing"
	case errors.Is(err, auth.ErrMalformedSignature):
		return "malformed"
	case errors.Is(err, auth.ErrTimestampOutOfRange):
		return "timestamp"
	default:
		return "invalid"
	}
}

// documentTypeLabel bounds metric cardinality to the known types
func documentTypeLabel(docType string) string {
	if policy.IsKnownType(docType) {
		return docType
	}
	return "other"
}

func targetStrings(targets []models.InvalidationTarget) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.String())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = go_json.NewEncoder(w).Encode(v)
}
