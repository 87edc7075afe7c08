package services

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"github.com/viewtube/apiserver/internal/store"
	"github.com/viewtube/apiserver/types"
)

// ChannelRepository defines the aggregated read queries over the
// social graph.
type ChannelRepository interface {
	Profile(ctx context.Context, viewerID int, username string) (types.ChannelProfile, error)
	WatchHistory(ctx context.Context, viewerID int) ([]types.WatchEntry, error)
}

// SubscriptionRepository defines persistence for subscription edges.
type SubscriptionRepository interface {
	Create(ctx context.Context, subscriberID, channelID int) error
	Delete(ctx context.Context, subscriberID, channelID int) error
	Exists(ctx context.Context, subscriberID, channelID int) (bool, error)
}

// EventPublisher sends a message to the named channel. Satisfied by
// mq.MQ; nil-able when no broker is configured.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// SubscriptionEvent is published when a subscription edge is created
// or removed, for downstream notification fan-out.
type SubscriptionEvent struct {
	SubscriberID int    `json:"subscriber_id"`
	ChannelID    int    `json:"channel_id"`
	Subscribed   bool   `json:"subscribed"`
	Channel      string `json:"channel_username"`
}

// ChannelService encapsulates the social-graph use-cases: aggregated
// channel profiles, watch history, and subscription toggling.
type ChannelService struct {
	channels      ChannelRepository
	subscriptions SubscriptionRepository
	users         UserRepository
	publisher     EventPublisher
	eventChannel  string
}

func NewChannelService(
	channels ChannelRepository,
	subscriptions SubscriptionRepository,
	users UserRepository,
) *ChannelService {
	return &ChannelService{
		channels:      channels,
		subscriptions: subscriptions,
		users:         users,
	}
}

// WithPublisher attaches a broker for subscription events.
func (s *ChannelService) WithPublisher(publisher EventPublisher, channel string) *ChannelService {
	s.publisher = publisher
	s.eventChannel = channel
	return s
}

// Profile returns the aggregated channel view for the given viewer.
func (s *ChannelService) Profile(ctx context.Context, viewerID int, username string) (types.ChannelProfile, error) {
	return s.channels.Profile(ctx, viewerID, username)
}

// WatchHistory returns the viewer's own history in append order.
func (s *ChannelService) WatchHistory(ctx context.Context, viewerID int) ([]types.WatchEntry, error) {
	return s.channels.WatchHistory(ctx, viewerID)
}

// ToggleSubscription subscribes the viewer to the named channel, or
// unsubscribes if the edge already exists. Subscribing to one's own
// channel is rejected. Returns the resulting membership state.
func (s *ChannelService) ToggleSubscription(ctx context.Context, viewerID int, username string) (bool, error) {
	channel, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if channel.ID == viewerID {
		return false, ErrSelfSubscription
	}

	subscribed, err := s.subscriptions.Exists(ctx, viewerID, channel.ID)
	if err != nil {
		return false, err
	}

	if subscribed {
		if err := s.subscriptions.Delete(ctx, viewerID, channel.ID); err != nil && err != store.ErrNotFound {
			return false, err
		}
	} else {
		if err := s.subscriptions.Create(ctx, viewerID, channel.ID); err != nil && err != store.ErrConflict {
			return false, err
		}
	}

	state := !subscribed
	s.publishSubscriptionEvent(ctx, SubscriptionEvent{
		SubscriberID: viewerID,
		ChannelID:    channel.ID,
		Subscribed:   state,
		Channel:      channel.Username,
	})
	return state, nil
}

func (s *ChannelService) publishSubscriptionEvent(ctx context.Context, event SubscriptionEvent) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	attrs := map[string]string{"channel_id": strconv.Itoa(event.ChannelID)}
	if _, err := s.publisher.Publish(ctx, s.eventChannel, data, attrs); err != nil {
		// Notifications are best-effort; the edge write already landed.
		log.Printf("publish subscription event: %v", err)
	}
}
