package accounts

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tasklift/backend/internal/models"
)

var (
	// ErrAccountNotFound is returned when the account id does not resolve.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidReferralCode is returned when a supplied referral code does
	// not belong to any account.
	ErrInvalidReferralCode = errors.New("invalid referral code")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateUsername is returned when the username is taken.
	ErrDuplicateUsername = errors.New("username already taken")
)

// Store is the minimal account persistence interface.
type Store interface {
	Create(ctx context.Context, a *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Account, error)
	ListReferredBy(ctx context.Context, referrerID uuid.UUID) ([]*models.Account, error)
}

// BalanceReader reads ledger-derived balances. The account store never keeps
// a balance of its own.
type BalanceReader interface {
	Balance(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// CreateParams carries the fields of a new account. PasswordHash must already
// be hashed by the caller. ReferrerCode optionally links the new account to
// the referrer owning that code.
type CreateParams struct {
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	ReferrerCode string
}

type Service interface {
	Create(ctx context.Context, p CreateParams) (*models.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Balance(ctx context.Context, id uuid.UUID) (int64, error)
	Referrals(ctx context.Context, id uuid.UUID) ([]*models.Account, error)
}

type service struct {
	store   Store
	balance BalanceReader
}

func NewService(store Store, balance BalanceReader) Service {
	return &service{store: store, balance: balance}
}

var _ Service = (*service)(nil)

// Create registers a new account with a fresh unique referral code. A
// supplied referrer code that does not resolve to an existing account is
// rejected with ErrInvalidReferralCode rather than silently dropped, so a
// user who mistyped a code finds out before the referrer loses the bonus.
func (s *service) Create(ctx context.Context, p CreateParams) (*models.Account, error) {
	var referredBy *uuid.UUID
	if code := strings.TrimSpace(p.ReferrerCode); code != "" {
		referrer, err := s.store.GetByReferralCode(ctx, code)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrInvalidReferralCode
			}
			return nil, err
		}
		referredBy = &referrer.ID
	}

	// Referral code collisions are vanishingly rare but the column is unique,
	// so regenerate and retry a few times before giving up.
	for attempt := 0; attempt < 3; attempt++ {
		code, err := generateReferralCode()
		if err != nil {
			return nil, err
		}
		acc := &models.Account{
			ID:           uuid.New(),
			Username:     p.Username,
			Email:        p.Email,
			FullName:     p.FullName,
			PasswordHash: p.PasswordHash,
			ReferralCode: code,
			ReferredBy:   referredBy,
		}
		err = s.store.Create(ctx, acc)
		if err == nil {
			return acc, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch {
			case strings.Contains(pgErr.ConstraintName, "email"):
				return nil, ErrDuplicateEmail
			case strings.Contains(pgErr.ConstraintName, "username"):
				return nil, ErrDuplicateUsername
			case strings.Contains(pgErr.ConstraintName, "referral_code"):
				continue
			}
		}
		return nil, err
	}
	return nil, errors.New("could not generate a unique referral code")
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	acc, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}

func (s *service) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	acc, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}

// Balance delegates to the ledger, the single source of balance truth.
func (s *service) Balance(ctx context.Context, id uuid.UUID) (int64, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return 0, err
	}
	return s.balance.Balance(ctx, id)
}

// Referrals lists the accounts this account referred.
func (s *service) Referrals(ctx context.Context, id uuid.UUID) ([]*models.Account, error) {
	return s.store.ListReferredBy(ctx, id)
}

// generateReferralCode returns a random 8-character URL-safe code.
func generateReferralCode() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b)[:8], nil
}
