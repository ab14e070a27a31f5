package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tasklift/backend/internal/accounts"
	"github.com/tasklift/backend/internal/ledger"
	"github.com/tasklift/backend/internal/models"
	"github.com/tasklift/backend/internal/referrals"
)

// ---------------------------------------------------------------------------
// Stubs. Each overrides only the operations the handler under test calls.
// ---------------------------------------------------------------------------

type stubLedgerSvc struct {
	ledger.Service
	historyFn func(ctx context.Context, accountID uuid.UUID, source string) ([]*models.LedgerEntry, error)
}

func (s *stubLedgerSvc) History(ctx context.Context, accountID uuid.UUID, source string) ([]*models.LedgerEntry, error) {
	return s.historyFn(ctx, accountID, source)
}

type stubReferralSvc struct {
	referrals.Service
	summarizeFn func(ctx context.Context, referrerID uuid.UUID) (*referrals.Summary, error)
}

func (s *stubReferralSvc) Summarize(ctx context.Context, referrerID uuid.UUID) (*referrals.Summary, error) {
	return s.summarizeFn(ctx, referrerID)
}

type stubAccountsSvc struct {
	accounts.Service
	referralsFn func(ctx context.Context, id uuid.UUID) ([]*models.Account, error)
}

func (s *stubAccountsSvc) Referrals(ctx context.Context, id uuid.UUID) ([]*models.Account, error) {
	return s.referralsFn(ctx, id)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestUserLedger(t *testing.T) {
	acc := &models.Account{ID: uuid.New()}
	entry := &models.LedgerEntry{ID: uuid.New(), AccountID: acc.ID, AmountCents: 200, Source: models.LedgerSourceTask}
	h := &UserHandler{
		LedgerSvc: &stubLedgerSvc{historyFn: func(_ context.Context, accountID uuid.UUID, source string) ([]*models.LedgerEntry, error) {
			if accountID != acc.ID {
				t.Errorf("history called with accountID=%s", accountID)
			}
			if source != models.LedgerSourceTask {
				t.Errorf("source: got %q", source)
			}
			return []*models.LedgerEntry{entry}, nil
		}},
		Logger: slog.Default(),
	}

	rec := httptest.NewRecorder()
	h.Ledger(rec, authedRequest(http.MethodGet, "/api/v1/me/ledger?source=task", "", acc))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	var got []*models.LedgerEntry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].AmountCents != 200 {
		t.Errorf("body: got %+v", got)
	}
}

func TestUserLedgerRejectsUnknownSource(t *testing.T) {
	acc := &models.Account{ID: uuid.New()}
	h := &UserHandler{
		LedgerSvc: &stubLedgerSvc{historyFn: func(context.Context, uuid.UUID, string) ([]*models.LedgerEntry, error) {
			t.Error("history must not be called for an unknown source")
			return nil, nil
		}},
		Logger: slog.Default(),
	}

	rec := httptest.NewRecorder()
	h.Ledger(rec, authedRequest(http.MethodGet, "/api/v1/me/ledger?source=lottery", "", acc))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}

	// No authenticated account.
	rec = httptest.NewRecorder()
	h.Ledger(rec, authedRequest(http.MethodGet, "/api/v1/me/ledger", "", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated: status got %d, want 401", rec.Code)
	}
}

func TestUserReferrals(t *testing.T) {
	acc := &models.Account{ID: uuid.New(), ReferralCode: "REFCODE1"}
	referred := &models.Account{ID: uuid.New(), Username: "bob", ReferredBy: &acc.ID}
	h := &UserHandler{
		Accounts: &stubAccountsSvc{referralsFn: func(_ context.Context, id uuid.UUID) ([]*models.Account, error) {
			return []*models.Account{referred}, nil
		}},
		ReferralSvc: &stubReferralSvc{summarizeFn: func(_ context.Context, referrerID uuid.UUID) (*referrals.Summary, error) {
			if referrerID != acc.ID {
				t.Errorf("summarize called with referrerID=%s", referrerID)
			}
			return &referrals.Summary{Referred: 1, TotalEarnedCents: 290, BonusPerSignupCent: 290}, nil
		}},
		Logger: slog.Default(),
	}

	rec := httptest.NewRecorder()
	h.Referrals(rec, authedRequest(http.MethodGet, "/api/v1/me/referrals", "", acc))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	var got referralsResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Referred) != 1 || got.Referred[0].Username != "bob" {
		t.Errorf("referred: got %+v", got.Referred)
	}
	if got.Summary == nil || got.Summary.TotalEarnedCents != 290 {
		t.Errorf("summary: got %+v", got.Summary)
	}
}
