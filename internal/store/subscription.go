package store

import (
	"context"
	"database/sql"
	"time"
)

// SubscriptionRepository handles the directed subscriber -> channel
// edges of the social graph.
type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, subscriberID, channelID int) error {
	const query = `
		INSERT INTO subscriptions (subscriber_id, channel_id, created_at)
		VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, subscriberID, channelID, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, subscriberID, channelID int) error {
	const query = `
		DELETE FROM subscriptions
		WHERE subscriber_id = $1 AND channel_id = $2`
	result, err := r.db.ExecContext(ctx, query, subscriberID, channelID)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func (r *SubscriptionRepository) Exists(ctx context.Context, subscriberID, channelID int) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE subscriber_id = $1 AND channel_id = $2
		)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, subscriberID, channelID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
