package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viewtube/apiserver/internal/mq"
	"github.com/viewtube/apiserver/internal/store"
	"github.com/viewtube/apiserver/types"
)

// WatchEvent is the broker payload emitted by the player service every
// time a user watches a video.
type WatchEvent struct {
	UserID  int `json:"user_id"`
	VideoID int `json:"video_id"`
}

// VideoCatalog looks up videos referenced by watch events.
type VideoCatalog interface {
	GetByID(ctx context.Context, id int) (types.Video, error)
}

// WatchEventConsumer appends broker-delivered watch events to user
// histories. It is the ingest path for the history the aggregator
// reads.
type WatchEventConsumer struct {
	users   UserRepository
	videos  VideoCatalog
	broker  *mq.MQ
	channel string
}

func NewWatchEventConsumer(users UserRepository, videos VideoCatalog, broker *mq.MQ, channel string) *WatchEventConsumer {
	return &WatchEventConsumer{users: users, videos: videos, broker: broker, channel: channel}
}

// Run blocks consuming watch events until ctx is cancelled.
func (c *WatchEventConsumer) Run(ctx context.Context) error {
	return c.broker.Subscribe(ctx, c.channel, c.handle)
}

// handle drops events that can never succeed (malformed payloads,
// unknown users or videos) so they are acked instead of redelivered
// forever; only transient store failures propagate for a retry.
func (c *WatchEventConsumer) handle(ctx context.Context, msg mq.Message) error {
	var event WatchEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return nil
	}
	if event.UserID < 1 || event.VideoID < 1 {
		return nil
	}

	if _, err := c.videos.GetByID(ctx, event.VideoID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup video: %w", err)
	}

	if err := c.users.AppendWatchHistory(ctx, event.UserID, event.VideoID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("append watch history: %w", err)
	}
	return nil
}
