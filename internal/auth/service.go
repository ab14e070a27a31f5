package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tasklift/backend/internal/accounts"
	"github.com/tasklift/backend/internal/models"
	"github.com/tasklift/backend/internal/referrals"
)

// ErrInvalidCredentials is returned when the email or password is wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SignupParams carries the registration form. ReferralCode is optional.
type SignupParams struct {
	Username     string
	Email        string
	FullName     string
	Password     string
	ReferralCode string
}

type Service interface {
	Signup(ctx context.Context, p SignupParams) (*models.Account, string, error)
	Signin(ctx context.Context, email, password string) (*models.Account, string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, bool, error)
}

type service struct {
	accounts  accounts.Service
	referrals referrals.Service
	secret    []byte
	tokenTTL  time.Duration
	logger    *slog.Logger
}

func NewService(accountsSvc accounts.Service, referralsSvc referrals.Service, secret string, logger *slog.Logger) Service {
	return &service{
		accounts:  accountsSvc,
		referrals: referralsSvc,
		secret:    []byte(secret),
		tokenTTL:  24 * time.Hour,
		logger:    logger,
	}
}

var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	IsAdmin bool `json:"is_admin"`
}

// Signup registers an account and returns it with a fresh token. When the
// account was referred, the referrer's signup bonus is awarded here; a bonus
// failure is logged rather than surfaced because the account already exists.
func (s *service) Signup(ctx context.Context, p SignupParams) (*models.Account, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}
	acc, err := s.accounts.Create(ctx, accounts.CreateParams{
		Username:     p.Username,
		Email:        p.Email,
		FullName:     p.FullName,
		PasswordHash: string(hash),
		ReferrerCode: p.ReferralCode,
	})
	if err != nil {
		return nil, "", err
	}

	if acc.ReferredBy != nil {
		if _, err := s.referrals.Award(ctx, acc); err != nil && !errors.Is(err, referrals.ErrDuplicateReferral) {
			s.logger.Error("referral bonus award failed", "account_id", acc.ID, "referrer_id", *acc.ReferredBy, "error", err)
		}
	}

	token, err := s.issueToken(acc)
	if err != nil {
		return nil, "", err
	}
	return acc, token, nil
}

func (s *service) Signin(ctx context.Context, email, password string) (*models.Account, string, error) {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.issueToken(acc)
	if err != nil {
		return nil, "", err
	}
	return acc, token, nil
}

func (s *service) issueToken(acc *models.Account) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		IsAdmin: acc.IsAdmin,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (uuid.UUID, bool, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, false, err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, false, errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, c.IsAdmin, nil
}
