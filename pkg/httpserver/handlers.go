package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/mselser95/polymarket-hedge/internal/hedge"
	"github.com/mselser95/polymarket-hedge/internal/pairs"
	"github.com/mselser95/polymarket-hedge/pkg/lock"
	"github.com/mselser95/polymarket-hedge/pkg/session"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

type handlers struct {
	executor Executor
	session  Session
	locker   lock.Locker
	pairs    PairSource
	lockWait time.Duration
	logger   *zap.Logger
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// SessionResponse reports the session state.
type SessionResponse struct {
	Unlocked bool   `json:"unlocked"`
	Address  string `json:"address"`
}

type unlockRequest struct {
	Password string `json:"password"`
}

// execute handles POST /api/hedge/execute.
func (h *handlers) execute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req types.ExecutionRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error(), "")
		observe("execute", http.StatusBadRequest, start)
		return
	}
	req.TargetPosition = types.ParsePosition(string(req.TargetPosition))
	req.CoverPosition = types.ParsePosition(string(req.CoverPosition))

	h.logger.Info("execute-request-received",
		zap.String("pair-id", req.PairID),
		zap.String("target-market-id", req.TargetMarketID),
		zap.String("cover-market-id", req.CoverMarketID),
		zap.Float64("amount", req.AmountPerPosition))

	lockCtx, cancel := context.WithTimeout(r.Context(), h.lockWait)
	release, err := h.locker.Acquire(lockCtx, strings.ToLower(h.session.Address().Hex()))
	cancel()
	if err != nil {
		status, reason := statusFor(err)
		h.writeError(w, status, err.Error(), reason)
		observe("execute", status, start)
		return
	}
	defer release()

	// the legs must run to completion even if the client disconnects
	result, err := h.executor.Execute(context.WithoutCancel(r.Context()), &req)
	if err != nil {
		status, reason := statusFor(err)
		h.writeError(w, status, err.Error(), reason)
		observe("execute", status, start)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
	observe("execute", http.StatusOK, start)
}

// unlock handles POST /api/session/unlock.
func (h *handlers) unlock(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var body unlockRequest
	err := decodeBody(w, r, &body)
	if err != nil || body.Password == "" {
		h.writeError(w, http.StatusBadRequest, "password is required", "")
		observe("unlock", http.StatusBadRequest, start)
		return
	}

	err = h.session.Unlock(body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrInvalidPassword) {
			status = http.StatusUnauthorized
		}
		h.logger.Warn("session-unlock-failed", zap.Error(err))
		h.writeError(w, status, err.Error(), "")
		observe("unlock", status, start)
		return
	}

	h.writeJSON(w, http.StatusOK, h.sessionState())
	observe("unlock", http.StatusOK, start)
}

// lock handles POST /api/session/lock.
func (h *handlers) lock(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.session.Lock()
	h.writeJSON(w, http.StatusOK, h.sessionState())
	observe("lock", http.StatusOK, start)
}

// sessionStatus handles GET /api/session.
func (h *handlers) sessionStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sessionState())
}

// pair handles GET /api/pairs/{pairID}.
func (h *handlers) pair(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pairID := chi.URLParam(r, "pairID")

	pair, err := h.pairs.Get(r.Context(), pairID)
	if err != nil {
		status, reason := statusFor(err)
		h.writeError(w, status, err.Error(), reason)
		observe("pair", status, start)
		return
	}

	h.writeJSON(w, http.StatusOK, pair)
	observe("pair", http.StatusOK, start)
}

func (h *handlers) sessionState() SessionResponse {
	return SessionResponse{
		Unlocked: h.session.IsUnlocked(),
		Address:  h.session.Address().Hex(),
	}
}

// statusFor maps engine and collaborator errors to HTTP status codes.
func statusFor(err error) (status int, reason string) {
	var invalid *types.InvalidRequestError
	var precondition *types.PreconditionError

	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "invalid-request"
	case errors.As(err, &precondition):
		return http.StatusUnprocessableEntity, precondition.Reason
	case errors.Is(err, types.ErrSessionLocked):
		return http.StatusLocked, "session-locked"
	case errors.Is(err, lock.ErrLockTimeout):
		return http.StatusConflict, "execution-in-progress"
	case errors.Is(err, hedge.ErrBalanceUnavailable):
		return http.StatusServiceUnavailable, "balance-unavailable"
	case errors.Is(err, pairs.ErrPairNotFound):
		return http.StatusNotFound, "pair-not-found"
	default:
		return http.StatusInternalServerError, ""
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func (h *handlers) writeError(w http.ResponseWriter, status int, message, reason string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Reason: reason})
}
