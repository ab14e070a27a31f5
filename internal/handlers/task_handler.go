package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tasklift/backend/internal/middleware"
	"github.com/tasklift/backend/internal/tasks"
)

// TaskHandler serves task and claim endpoints.
type TaskHandler struct {
	Tasks  tasks.Service
	Logger *slog.Logger
}

// --- GET /api/v1/tasks ---

// ListTasks returns tasks whose expiry has not passed. Public.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.Tasks.ListActive(r.Context(), time.Now())
	if err != nil {
		h.Logger.Error("list tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// --- POST /api/v1/admin/tasks ---

type createTaskRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Platform    string    `json:"platform"`
	RewardCents int64     `json:"reward_cents"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CreateTask handles admin task creation. AdminOnly middleware gates it.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	task, err := h.Tasks.Create(r.Context(), req.Title, req.Description, req.Platform, req.RewardCents, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, tasks.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.Logger.Error("create task", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// --- POST /api/v1/tasks/{id}/claim ---

func (h *TaskHandler) ClaimTask(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := extractPathID(r, "/api/v1/tasks/")
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	claim, err := h.Tasks.Claim(r.Context(), acc.ID, taskID)
	if err != nil {
		switch {
		case errors.Is(err, tasks.ErrTaskNotFound):
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		case errors.Is(err, tasks.ErrTaskExpired):
			http.Error(w, `{"error":"task expired"}`, http.StatusGone)
		case errors.Is(err, tasks.ErrAlreadyClaimed):
			http.Error(w, `{"error":"task already claimed"}`, http.StatusConflict)
		default:
			h.Logger.Error("claim task", "task_id", taskID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

// --- POST /api/v1/claims/{id}/complete ---

type completeClaimRequest struct {
	ProofURL string `json:"proof_url"`
}

func (h *TaskHandler) CompleteClaim(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	claimID, ok := extractPathID(r, "/api/v1/claims/")
	if !ok {
		http.Error(w, `{"error":"invalid claim id"}`, http.StatusBadRequest)
		return
	}
	var req completeClaimRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	claim, err := h.Tasks.Complete(r.Context(), acc.ID, claimID, req.ProofURL)
	if err != nil {
		switch {
		case errors.Is(err, tasks.ErrClaimNotFound):
			http.Error(w, `{"error":"claim not found"}`, http.StatusNotFound)
		case errors.Is(err, tasks.ErrAlreadyCompleted):
			http.Error(w, `{"error":"claim already completed"}`, http.StatusConflict)
		default:
			h.Logger.Error("complete claim", "claim_id", claimID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// --- GET /api/v1/claims ---

func (h *TaskHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	claims, err := h.Tasks.ListClaims(r.Context(), acc.ID)
	if err != nil {
		h.Logger.Error("list claims", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

// --- helpers ---

// extractPathID parses the UUID following prefix in the URL path. Supports
// paths like /api/v1/tasks/{id} and /api/v1/tasks/{id}/claim.
func extractPathID(r *http.Request, prefix string) (uuid.UUID, bool) {
	path := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
