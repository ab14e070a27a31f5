package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tasklift/backend/internal/middleware"
	"github.com/tasklift/backend/internal/models"
	"github.com/tasklift/backend/internal/withdrawals"
)

// WithdrawalHandler serves withdrawal endpoints.
type WithdrawalHandler struct {
	Withdrawals withdrawals.Service
	Logger      *slog.Logger
}

// --- POST /api/v1/withdrawals ---

type createWithdrawalRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	Destination string `json:"destination"`
}

func (h *WithdrawalHandler) Create(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	wr, err := h.Withdrawals.Request(r.Context(), acc.ID, req.AmountCents, req.Method, req.Destination)
	if err != nil {
		switch {
		case errors.Is(err, withdrawals.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, withdrawals.ErrInsufficientBalance):
			http.Error(w, `{"error":"insufficient balance"}`, http.StatusPaymentRequired)
		default:
			h.Logger.Error("create withdrawal", "account_id", acc.ID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, wr)
}

// --- GET /api/v1/withdrawals ---

func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.Withdrawals.List(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("list withdrawals", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.WithdrawalRequest{}
	}
	writeJSON(w, http.StatusOK, list)
}

// --- GET /api/v1/withdrawals/{id} ---

func (h *WithdrawalHandler) Get(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := extractPathID(r, "/api/v1/withdrawals/")
	if !ok {
		http.Error(w, `{"error":"invalid withdrawal id"}`, http.StatusBadRequest)
		return
	}
	wr, err := h.Withdrawals.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, withdrawals.ErrRequestNotFound) {
			http.Error(w, `{"error":"withdrawal not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get withdrawal", "withdrawal_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	// Requests are visible only to their owner.
	if wr.AccountID != acc.ID && !acc.IsAdmin {
		http.Error(w, `{"error":"withdrawal not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wr)
}
