package services

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/viewtube/apiserver/config"
)

// TokenPair bundles a short-lived access token and a longer-lived
// refresh token issued together.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenIssuer mints and verifies the two session token classes. Each
// class has its own HMAC secret, so an access token never verifies as
// a refresh token and vice versa.
type TokenIssuer struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
}

// NewTokenIssuer validates the signing configuration. Both secrets are
// required and must differ; a missing secret is a startup failure, not
// a per-request condition.
func NewTokenIssuer(cfg config.TokenConfig) (*TokenIssuer, error) {
	access := strings.TrimSpace(cfg.AccessSecret)
	refresh := strings.TrimSpace(cfg.RefreshSecret)
	if access == "" {
		return nil, errors.New("ACCESS_TOKEN_SECRET is required")
	}
	if refresh == "" {
		return nil, errors.New("REFRESH_TOKEN_SECRET is required")
	}
	if access == refresh {
		return nil, errors.New("access and refresh token secrets must differ")
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	return &TokenIssuer{
		accessSecret:  []byte(access),
		accessTTL:     accessTTL,
		refreshSecret: []byte(refresh),
		refreshTTL:    refreshTTL,
	}, nil
}

// IssuePair mints an access/refresh pair for the user.
func (t *TokenIssuer) IssuePair(userID int) (TokenPair, error) {
	access, err := t.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.IssueRefresh(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (t *TokenIssuer) IssueAccess(userID int) (string, error) {
	return signToken(userID, t.accessSecret, t.accessTTL)
}

func (t *TokenIssuer) IssueRefresh(userID int) (string, error) {
	return signToken(userID, t.refreshSecret, t.refreshTTL)
}

// VerifyAccess checks signature and expiry of an access token and
// returns the embedded user id.
func (t *TokenIssuer) VerifyAccess(token string) (int, error) {
	return parseToken(token, t.accessSecret)
}

// VerifyRefresh checks signature and expiry of a refresh token and
// returns the embedded user id. It says nothing about whether the
// token is still the stored one; the rotation protocol checks that.
func (t *TokenIssuer) VerifyRefresh(token string) (int, error) {
	return parseToken(token, t.refreshSecret)
}

func signToken(userID int, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	// The jti makes every token unique even within one clock second,
	// so a rotated refresh token never equals its predecessor.
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseToken(tokenString string, secret []byte) (int, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
