package services

import (
	"context"
	"errors"
	"strings"

	"github.com/viewtube/apiserver/internal/store"
	"github.com/viewtube/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// SessionService owns the credential and session-token lifecycle:
// registration, login, refresh rotation, logout, password change.
//
// Per user there is at most one valid refresh token, the one most
// recently written. Rotation is a compare-and-swap on that field, so a
// refresh token is single-use: presenting it again after rotation (or
// after logout, or after a newer login) fails closed.
type SessionService struct {
	repo   UserRepository
	tokens *TokenIssuer
}

func NewSessionService(repo UserRepository, tokens *TokenIssuer) *SessionService {
	return &SessionService{repo: repo, tokens: tokens}
}

// RegisterParams carries the validated registration input. Media URLs
// point at already-uploaded objects.
type RegisterParams struct {
	Username  string
	Email     string
	FullName  string
	Password  string
	AvatarURL string
	CoverURL  string
}

// Register creates a new account. Username and email are lowercased
// before storage; a duplicate of either yields store.ErrConflict.
func (s *SessionService) Register(ctx context.Context, params RegisterParams) (types.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Username:     strings.ToLower(params.Username),
		Email:        strings.ToLower(params.Email),
		FullName:     params.FullName,
		AvatarURL:    params.AvatarURL,
		CoverURL:     params.CoverURL,
		PasswordHash: string(hashed),
	})
}

// Login verifies credentials and opens a session. The fresh refresh
// token overwrites any stored one; when two logins race, the last
// write wins and the loser's refresh token is silently invalidated.
func (s *SessionService) Login(ctx context.Context, identity, password string) (types.User, TokenPair, error) {
	user, err := s.repo.GetByIdentity(ctx, identity)
	if err != nil {
		return types.User{}, TokenPair{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return types.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return types.User{}, TokenPair{}, ErrTokenGeneration
	}
	if err := s.repo.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return types.User{}, TokenPair{}, ErrTokenGeneration
	}
	return user, pair, nil
}

// Refresh exchanges a valid, still-current refresh token for a new
// pair. The presented token must match the stored one exactly; a
// mismatch after a valid signature means the token was already used or
// revoked, and the exchange fails with ErrSessionExpired.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}

	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, ErrSessionExpired
		}
		return TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(userID)
	if err != nil {
		return TokenPair{}, ErrTokenGeneration
	}

	if err := s.repo.RotateRefreshToken(ctx, userID, refreshToken, pair.RefreshToken); err != nil {
		if errors.Is(err, store.ErrStaleToken) {
			return TokenPair{}, ErrSessionExpired
		}
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout clears the stored refresh token unconditionally. Logging out
// twice is not an error.
func (s *SessionService) Logout(ctx context.Context, userID int) error {
	return s.repo.SetRefreshToken(ctx, userID, "")
}

// ChangePassword re-verifies the current password before accepting the
// new one. On a wrong current password the stored hash is untouched.
func (s *SessionService) ChangePassword(ctx context.Context, userID int, current, next string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePasswordHash(ctx, userID, string(hashed))
}
