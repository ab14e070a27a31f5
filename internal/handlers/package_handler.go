package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tasklift/backend/internal/models"
)

// PackageLister is the catalog subset the handler needs.
type PackageLister interface {
	List(ctx context.Context) ([]*models.Package, error)
}

// PackageHandler serves the public package catalog.
type PackageHandler struct {
	Packages PackageLister
	Logger   *slog.Logger
}

// --- GET /api/v1/packages ---

func (h *PackageHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Packages.List(r.Context())
	if err != nil {
		h.Logger.Error("list packages", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Package{}
	}
	writeJSON(w, http.StatusOK, list)
}
