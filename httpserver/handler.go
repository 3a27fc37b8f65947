package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/custodia/guardian-recovery-backend/api"
	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/custodia/guardian-recovery-backend/metrics"
	"github.com/custodia/guardian-recovery-backend/orchestrator"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Handler processes HTTP requests for the recovery service.
type Handler struct {
	orchestrator *orchestrator.Orchestrator
	metrics      *metrics.MetricsServer
	log          *slog.Logger
}

// NewHandler creates a request handler over the orchestrator. The server
// wires its metrics instance in on construction; a standalone handler
// records no counters.
func NewHandler(orch *orchestrator.Orchestrator, log *slog.Logger) *Handler {
	return &Handler{
		orchestrator: orch,
		log:          log,
	}
}

// HandleInitiate opens a recovery session.
//
// URL format: POST /api/recovery/initiate
func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	var req api.InitiateRecoveryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	session, err := h.orchestrator.InitiateRecovery(r.Context(), req.Owner, req.NewOwner, req.Initiator)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SessionsInitiated.Inc()
	}
	h.writeJSON(w, api.NewSessionResponse(session))
}

// HandleSubmitShare records a guardian's encrypted share for a session.
//
// URL format: POST /api/recovery/{session_id}/share
func (h *Handler) HandleSubmitShare(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	var req api.SubmitShareRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	session, err := h.orchestrator.SubmitShare(r.Context(), sessionID, req.Guardian, req.EncryptedShare)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SharesSubmitted.Inc()
	}
	h.writeJSON(w, api.NewSessionResponse(session))
}

// HandleReadiness reports whether a session is executable.
//
// URL format: GET /api/recovery/{session_id}/readiness
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	ready, err := h.orchestrator.CheckReadiness(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.orchestrator.Session(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	remaining, err := h.orchestrator.TimeRemaining(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, &api.ReadinessResponse{
		SessionID:        sessionID,
		Ready:            ready,
		CollectedWeight:  session.CollectedWeight(),
		Threshold:        session.Threshold,
		RemainingSeconds: int64(remaining.Seconds()),
	})
}

// HandleTimeRemaining reports the session's outstanding time lock.
//
// URL format: GET /api/recovery/{session_id}/remaining
func (h *Handler) HandleTimeRemaining(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	remaining, err := h.orchestrator.TimeRemaining(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.orchestrator.Session(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, &api.TimeRemainingResponse{
		SessionID:        sessionID,
		RemainingSeconds: int64(remaining.Seconds()),
		ExecuteAfter:     session.ExecuteAfter,
	})
}

// HandleExecute reconstructs the secret from the collected shares.
//
// URL format: POST /api/recovery/{session_id}/execute
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	secret, session, err := h.orchestrator.ExecuteRecovery(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SessionsExecuted.Inc()
	}
	h.writeJSON(w, &api.ExecuteResponse{
		Session: api.NewSessionResponse(session),
		Secret:  secret,
	})
}

// HandleCancel aborts a session.
//
// URL format: POST /api/recovery/{session_id}/cancel
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	var req api.CancelRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	session, err := h.orchestrator.CancelRecovery(r.Context(), sessionID, req.Caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SessionsCancelled.Inc()
	}
	h.writeJSON(w, api.NewSessionResponse(session))
}

// HandleSession fetches a session by id.
//
// URL format: GET /api/recovery/{session_id}
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.orchestrator.Session(r.Context(), r.PathValue("session_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, api.NewSessionResponse(session))
}

// HandleActiveSession fetches the owner's active session.
//
// URL format: GET /api/recovery/active/{owner}
func (h *Handler) HandleActiveSession(w http.ResponseWriter, r *http.Request) {
	owner, err := interfaces.NewAccountAddressFromHex(r.PathValue("owner"))
	if err != nil {
		h.writeError(w, r, interfaces.ErrInvalidInput)
		return
	}

	session, err := h.orchestrator.ActiveSession(r.Context(), owner)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, api.NewSessionResponse(session))
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		h.log.Error("Failed to parse request body", "err", err, "path", r.URL.Path)
		h.writeErrorBody(w, http.StatusBadRequest, &api.ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) writeErrorBody(w http.ResponseWriter, status int, body *api.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode error response", "err", err)
	}
}

// writeError maps domain errors to HTTP statuses. Threshold and time-lock
// refusals keep their structured detail in the response body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := &api.ErrorResponse{Error: err.Error()}

	var thresholdErr *interfaces.ThresholdNotMetError
	var timeLockErr *interfaces.TimeLockError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &thresholdErr):
		status = http.StatusConflict
		body.RemainingWeight = thresholdErr.Remaining()
		h.countFailure("threshold_not_met")
	case errors.As(err, &timeLockErr):
		status = http.StatusConflict
		body.RemainingSeconds = int64(timeLockErr.Remaining.Seconds())
		h.countFailure("time_lock")
	case errors.Is(err, interfaces.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, interfaces.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, interfaces.ErrNotFound), errors.Is(err, interfaces.ErrNotConfigured):
		status = http.StatusNotFound
	case errors.Is(err, interfaces.ErrAlreadyActive),
		errors.Is(err, interfaces.ErrAlreadySubmitted),
		errors.Is(err, interfaces.ErrAlreadyApproved),
		errors.Is(err, interfaces.ErrAlreadyExecuted),
		errors.Is(err, interfaces.ErrAlreadyCancelled):
		status = http.StatusConflict
	default:
		h.countFailure("internal")
		h.log.Error("Request failed", "err", err, "path", r.URL.Path)
	}

	h.writeErrorBody(w, status, body)
}

func (h *Handler) countFailure(reason string) {
	if h.metrics != nil {
		h.metrics.RecoveryFailures.WithLabelValues(reason).Inc()
	}
}
