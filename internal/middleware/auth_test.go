package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tasklift/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubValidator struct {
	accountID uuid.UUID
	err       error
}

func (s *stubValidator) ValidateToken(_ context.Context, token string) (uuid.UUID, bool, error) {
	if s.err != nil {
		return uuid.Nil, false, s.err
	}
	return s.accountID, false, nil
}

type stubLookup struct {
	accounts map[uuid.UUID]*models.Account
}

func (s *stubLookup) Get(_ context.Context, id uuid.UUID) (*models.Account, error) {
	acc, ok := s.accounts[id]
	if !ok {
		return nil, errors.New("account not found")
	}
	return acc, nil
}

func okHandler(got **models.Account) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = AccountFromCtx(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestAuthSetsAccount(t *testing.T) {
	acc := &models.Account{ID: uuid.New(), Username: "alice"}
	mw := Auth(&stubValidator{accountID: acc.ID}, &stubLookup{accounts: map[uuid.UUID]*models.Account{acc.ID: acc}})

	var got *models.Account
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	rec := httptest.NewRecorder()
	mw(okHandler(&got)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if got == nil || got.ID != acc.ID {
		t.Error("account should be set in request context")
	}
}

func TestAuthMissingHeader(t *testing.T) {
	mw := Auth(&stubValidator{}, &stubLookup{})

	for _, header := range []string{"", "Basic abc", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		var got *models.Account
		mw(okHandler(&got)).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status got %d, want 401", header, rec.Code)
		}
	}
}

func TestAuthInvalidToken(t *testing.T) {
	mw := Auth(&stubValidator{err: errors.New("expired")}, &stubLookup{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer expiredtoken")
	rec := httptest.NewRecorder()
	var got *models.Account
	mw(okHandler(&got)).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestAdminOnly(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Admin passes.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/tasks", nil)
	req = req.WithContext(WithAccount(req.Context(), &models.Account{ID: uuid.New(), IsAdmin: true}))
	rec := httptest.NewRecorder()
	AdminOnly(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin: status got %d, want 200", rec.Code)
	}

	// Non-admin is refused.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/tasks", nil)
	req = req.WithContext(WithAccount(req.Context(), &models.Account{ID: uuid.New()}))
	rec = httptest.NewRecorder()
	AdminOnly(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin: status got %d, want 403", rec.Code)
	}

	// Missing account is refused.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/tasks", nil)
	rec = httptest.NewRecorder()
	AdminOnly(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("no account: status got %d, want 403", rec.Code)
	}
}
