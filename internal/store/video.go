package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/viewtube/apiserver/types"
)

const videoColumns = `id, owner_id, title, description, video_url, thumbnail_url, duration_seconds, views, created_at`

// VideoRepository reads the content catalog. Rows are written by the
// upload pipeline; this service only creates them in tests.
type VideoRepository struct {
	db *sql.DB
}

func NewVideoRepository(db *sql.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) GetByID(ctx context.Context, id int) (types.Video, error) {
	const query = `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE id = $1`
	var video types.Video
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&video.ID,
		&video.OwnerID,
		&video.Title,
		&video.Description,
		&video.VideoURL,
		&video.ThumbnailURL,
		&video.DurationSeconds,
		&video.Views,
		&video.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Video{}, ErrNotFound
		}
		return types.Video{}, err
	}
	return video, nil
}

func (r *VideoRepository) Create(ctx context.Context, video types.Video) (types.Video, error) {
	video.CreatedAt = time.Now()

	const query = `
		INSERT INTO videos (owner_id, title, description, video_url, thumbnail_url, duration_seconds, views, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		video.OwnerID,
		video.Title,
		video.Description,
		video.VideoURL,
		video.ThumbnailURL,
		video.DurationSeconds,
		video.Views,
		video.CreatedAt,
	).Scan(&video.ID)
	if err != nil {
		return types.Video{}, err
	}
	return video, nil
}
