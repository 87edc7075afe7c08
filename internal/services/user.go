package services

import (
	"context"
	"strings"

	"github.com/viewtube/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByIdentity(ctx context.Context, identity string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetRefreshToken(ctx context.Context, id int, token string) error
	RotateRefreshToken(ctx context.Context, id int, current, next string) error
	UpdateAccount(ctx context.Context, id int, fullName, email string) (types.User, error)
	UpdatePasswordHash(ctx context.Context, id int, passwordHash string) error
	UpdateAvatar(ctx context.Context, id int, avatarURL string) (types.User, error)
	UpdateCover(ctx context.Context, id int, coverURL string) (types.User, error)
	AppendWatchHistory(ctx context.Context, userID, videoID int) error
}

// UserService encapsulates profile use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) UpdateAccount(ctx context.Context, id int, fullName, email string) (types.User, error) {
	return s.repo.UpdateAccount(ctx, id, fullName, strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserService) UpdateAvatar(ctx context.Context, id int, avatarURL string) (types.User, error) {
	return s.repo.UpdateAvatar(ctx, id, avatarURL)
}

func (s *UserService) UpdateCover(ctx context.Context, id int, coverURL string) (types.User, error) {
	return s.repo.UpdateCover(ctx, id, coverURL)
}
