// Package api emulates the spreadsheet script endpoint over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shunichi-ikebuchi/debt-tracker/internal/emulator/store"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/sheets"
)

// maxBodyBytes bounds a mutation payload.
const maxBodyBytes = 1 << 20

// Config represents the configuration for a ScriptHandler.
type Config struct {
	// ScriptID restricts the handler to one deployment. Empty accepts any.
	ScriptID string
	// Token is the shared secret callers must present. Empty disables the check.
	Token string
	// ApplyDelay is how long an accepted mutation stays invisible to reads.
	ApplyDelay time.Duration
	// PaidSkew is added to every submitted paid total before it is stored,
	// emulating server-side adjustments.
	PaidSkew float64
	Logger   *slog.Logger
	Now      func() time.Time
}

// ScriptHandler serves GET (snapshot) and POST (mutation) on one endpoint.
type ScriptHandler struct {
	store  *store.Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	pending sync.WaitGroup
}

// NewScriptHandler creates a new ScriptHandler.
func NewScriptHandler(s *store.Store, cfg Config) *ScriptHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ScriptHandler{store: s, cfg: cfg, logger: logger, now: now}
}

// Routes mounts the script endpoint on r.
func (h *ScriptHandler) Routes(r chi.Router) {
	const pattern = "/macros/s/{scriptID}/exec"
	r.With(h.scriptMiddleware).Get(pattern, h.Get)
	r.With(h.scriptMiddleware).Post(pattern, h.Post)
}

// Wait blocks until every accepted mutation has been applied.
func (h *ScriptHandler) Wait() {
	h.pending.Wait()
}

func (h *ScriptHandler) scriptMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.ScriptID != "" && chi.URLParam(r, "scriptID") != h.cfg.ScriptID {
			writeEnvelopeError(w, http.StatusNotFound, "not_found", "Unknown script deployment")
			return
		}
		// Reads must never be cached.
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Get handles GET ?action=getAll&token=...
func (h *ScriptHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !h.authorized(q.Get("token")) {
		writeEnvelopeError(w, http.StatusOK, sheets.CodeInvalidCredential, "Invalid token")
		return
	}
	if action := q.Get("action"); action != sheets.ActionGetAll {
		writeEnvelopeError(w, http.StatusBadRequest, "unknown_action", "Unknown action: "+action)
		return
	}

	snap, err := h.store.Snapshot()
	if err != nil {
		h.logger.Error("failed to read snapshot", "error", err)
		writeEnvelopeError(w, http.StatusInternalServerError, "server_error", "Failed to read sheet")
		return
	}

	writeJSON(w, http.StatusOK, sheets.SnapshotResponse{
		Status:          sheets.StatusOK,
		PendingExpenses: &snap.PendingExpenses,
		Transactions:    &snap.Transactions,
		Accounts:        &snap.Accounts,
	})
}

// Post handles a mutation. It answers before the mutation is applied, the
// way the real endpoint does.
func (h *ScriptHandler) Post(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, "invalid_request", "Failed to read body")
		return
	}

	var m model.Mutation
	if err := json.Unmarshal(body, &m); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, "invalid_request", "Invalid mutation payload")
		return
	}
	if !h.authorized(m.Token) {
		writeEnvelopeError(w, http.StatusOK, sheets.CodeInvalidCredential, "Invalid token")
		return
	}

	m.Expense.TotalPaid += h.cfg.PaidSkew

	h.pending.Add(1)
	time.AfterFunc(h.cfg.ApplyDelay, func() {
		defer h.pending.Done()
		h.apply(m)
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": sheets.StatusOK})
}

func (h *ScriptHandler) apply(m model.Mutation) {
	applied, err := h.store.Apply(m, h.now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.logger.Warn("mutation for unknown expense dropped", "request_id", m.RequestID, "expense_id", m.Expense.ID)
	case err != nil:
		h.logger.Error("failed to apply mutation", "request_id", m.RequestID, "error", err)
	case !applied:
		h.logger.Info("duplicate mutation ignored", "request_id", m.RequestID)
	default:
		h.logger.Info("mutation applied",
			"request_id", m.RequestID,
			"action", m.Action,
			"expense_id", m.Expense.ID,
			"total_paid", m.Expense.TotalPaid,
		)
	}
}

func (h *ScriptHandler) authorized(token string) bool {
	return h.cfg.Token == "" || token == h.cfg.Token
}

// writeEnvelopeError writes an error envelope.
func writeEnvelopeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, sheets.SnapshotResponse{
		Status:  sheets.StatusError,
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
