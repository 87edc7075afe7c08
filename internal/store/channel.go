package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/viewtube/apiserver/types"
)

// ChannelRepository computes the derived social-graph views. Each view
// is a single SQL statement, so callers always see one consistent
// snapshot of the graph.
type ChannelRepository struct {
	db *sql.DB
}

func NewChannelRepository(db *sql.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Profile resolves a channel by username and aggregates its inbound
// and outbound subscription edges plus the viewer's membership flag.
func (r *ChannelRepository) Profile(ctx context.Context, viewerID int, username string) (types.ChannelProfile, error) {
	const query = `
		SELECT
			u.id,
			u.username,
			u.email,
			u.full_name,
			u.avatar_url,
			u.cover_url,
			(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id) AS total_subscribers,
			(SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id) AS total_subscribed_to,
			EXISTS (
				SELECT 1 FROM subscriptions s
				WHERE s.subscriber_id = $2 AND s.channel_id = u.id
			) AS is_subscribed
		FROM users u
		WHERE u.username = lower($1)`
	var profile types.ChannelProfile
	err := r.db.QueryRowContext(ctx, query, username, viewerID).Scan(
		&profile.ID,
		&profile.Username,
		&profile.Email,
		&profile.FullName,
		&profile.AvatarURL,
		&profile.CoverURL,
		&profile.TotalSubscribers,
		&profile.TotalSubscribedTo,
		&profile.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ChannelProfile{}, ErrNotFound
		}
		return types.ChannelProfile{}, err
	}
	return profile, nil
}

// WatchHistory returns the viewer's watched videos in append order,
// each joined with its owner's public identity. The query is scoped to
// the viewer's own history rows.
func (r *ChannelRepository) WatchHistory(ctx context.Context, viewerID int) ([]types.WatchEntry, error) {
	const query = `
		SELECT
			v.id, v.owner_id, v.title, v.description, v.video_url,
			v.thumbnail_url, v.duration_seconds, v.views, v.created_at,
			o.full_name, o.username, o.avatar_url,
			wh.watched_at
		FROM watch_history wh
		JOIN videos v ON v.id = wh.video_id
		JOIN users o ON o.id = v.owner_id
		WHERE wh.user_id = $1
		ORDER BY wh.position`
	rows, err := r.db.QueryContext(ctx, query, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.WatchEntry, 0)
	for rows.Next() {
		var entry types.WatchEntry
		if err := rows.Scan(
			&entry.Video.ID,
			&entry.Video.OwnerID,
			&entry.Video.Title,
			&entry.Video.Description,
			&entry.Video.VideoURL,
			&entry.Video.ThumbnailURL,
			&entry.Video.DurationSeconds,
			&entry.Video.Views,
			&entry.Video.CreatedAt,
			&entry.Owner.FullName,
			&entry.Owner.Username,
			&entry.Owner.AvatarURL,
			&entry.WatchedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
