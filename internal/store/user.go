package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/viewtube/apiserver/types"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const userColumns = `id, username, email, full_name, avatar_url, cover_url, password_hash, COALESCE(refresh_token, ''), created_at, updated_at`

// UserRepository handles persistence for users. It is the only layer
// that sees password hashes and stored refresh tokens.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = lower($1)`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

// GetByIdentity resolves a user by username or email, case-insensitively.
func (r *UserRepository) GetByIdentity(ctx context.Context, identity string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = lower($1) OR email = lower($1)`
	return r.scanUser(r.db.QueryRowContext(ctx, query, identity))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (username, email, full_name, avatar_url, cover_url, password_hash, created_at, updated_at)
		VALUES (lower($1), lower($2), $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.FullName,
		user.AvatarURL,
		user.CoverURL,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrConflict
		}
		return types.User{}, err
	}
	return user, nil
}

// SetRefreshToken unconditionally replaces the stored refresh token.
// An empty token clears it (logout). Last write wins: a concurrent
// login silently invalidates tokens issued by the losing one.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id int, token string) error {
	const query = `
		UPDATE users
		SET refresh_token = NULLIF($1, ''),
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, token, time.Now(), id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// RotateRefreshToken swaps the stored refresh token for next only if
// the stored value still equals current. A miss means the presented
// token was already rotated or revoked; callers must fail closed.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, id int, current, next string) error {
	const query = `
		UPDATE users
		SET refresh_token = $1,
			updated_at = $2
		WHERE id = $3 AND refresh_token = $4`
	result, err := r.db.ExecContext(ctx, query, next, time.Now(), id, current)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStaleToken
	}
	return nil
}

func (r *UserRepository) UpdateAccount(ctx context.Context, id int, fullName, email string) (types.User, error) {
	const query = `
		UPDATE users
		SET full_name = $1,
			email = lower($2),
			updated_at = $3
		WHERE id = $4
		RETURNING ` + userColumns
	user, err := r.scanUser(r.db.QueryRowContext(ctx, query, fullName, email, time.Now(), id))
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrConflict
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id int, avatarURL string) (types.User, error) {
	const query = `
		UPDATE users
		SET avatar_url = $1,
			updated_at = $2
		WHERE id = $3
		RETURNING ` + userColumns
	return r.scanUser(r.db.QueryRowContext(ctx, query, avatarURL, time.Now(), id))
}

func (r *UserRepository) UpdateCover(ctx context.Context, id int, coverURL string) (types.User, error) {
	const query = `
		UPDATE users
		SET cover_url = $1,
			updated_at = $2
		WHERE id = $3
		RETURNING ` + userColumns
	return r.scanUser(r.db.QueryRowContext(ctx, query, coverURL, time.Now(), id))
}

// AppendWatchHistory records one watched video at the end of the
// user's history. Duplicate video ids are allowed; order is the append
// order. A row referencing a user or video that does not exist maps to
// ErrNotFound so callers can tell it apart from transient failures.
func (r *UserRepository) AppendWatchHistory(ctx context.Context, userID, videoID int) error {
	const query = `
		INSERT INTO watch_history (user_id, video_id, watched_at)
		VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, userID, videoID, time.Now())
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

func (r *UserRepository) scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.AvatarURL,
		&user.CoverURL,
		&user.PasswordHash,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
