package handlers

import (
	"log/slog"
	"net/http"

	"github.com/tasklift/backend/internal/accounts"
	"github.com/tasklift/backend/internal/ledger"
	"github.com/tasklift/backend/internal/middleware"
	"github.com/tasklift/backend/internal/models"
	"github.com/tasklift/backend/internal/referrals"
	"github.com/tasklift/backend/internal/tasks"
)

// UserHandler serves the authenticated account's own views: profile, balance,
// ledger history, stats and referrals.
type UserHandler struct {
	Accounts    accounts.Service
	Tasks       tasks.Service
	ReferralSvc referrals.Service
	LedgerSvc   ledger.Service
	Logger      *slog.Logger
}

// --- GET /api/v1/me ---

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// --- GET /api/v1/me/balance ---

type balanceResponse struct {
	BalanceCents int64 `json:"balance_cents"`
}

func (h *UserHandler) Balance(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	balance, err := h.Accounts.Balance(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("read balance", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{BalanceCents: balance})
}

// --- GET /api/v1/me/ledger ---

// Ledger returns the account's entries newest first. An optional ?source=
// query narrows to one source (task, referral, bonus, withdrawal).
func (h *UserHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	source := r.URL.Query().Get("source")
	if source != "" && !models.KnownLedgerSources[source] {
		http.Error(w, `{"error":"unknown source"}`, http.StatusBadRequest)
		return
	}
	entries, err := h.LedgerSvc.History(r.Context(), acc.ID, source)
	if err != nil {
		h.Logger.Error("read ledger history", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- GET /api/v1/me/stats ---

type statsResponse struct {
	BalanceCents int64              `json:"balance_cents"`
	Tasks        *tasks.Stats       `json:"tasks"`
	Referrals    *referrals.Summary `json:"referrals"`
	ReferralCode string             `json:"referral_code"`
}

func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	balance, err := h.Accounts.Balance(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("read balance", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	taskStats, err := h.Tasks.Stats(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("read task stats", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	refSummary, err := h.ReferralSvc.Summarize(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("read referral summary", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		BalanceCents: balance,
		Tasks:        taskStats,
		Referrals:    refSummary,
		ReferralCode: acc.ReferralCode,
	})
}

// --- GET /api/v1/me/referrals ---

type referralsResponse struct {
	Referred []*models.Account  `json:"referred"`
	Summary  *referrals.Summary `json:"summary"`
}

func (h *UserHandler) Referrals(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	referred, err := h.Accounts.Referrals(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("list referrals", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	summary, err := h.ReferralSvc.Summarize(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("summarize referrals", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if referred == nil {
		referred = []*models.Account{}
	}
	writeJSON(w, http.StatusOK, referralsResponse{Referred: referred, Summary: summary})
}
