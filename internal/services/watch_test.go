package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viewtube/apiserver/internal/mq"
	"github.com/viewtube/apiserver/internal/store"
	"github.com/viewtube/apiserver/types"
)

// fakeVideoCatalog serves a fixed set of video ids.
type fakeVideoCatalog struct {
	videos map[int]types.Video
	err    error
}

func (f *fakeVideoCatalog) GetByID(ctx context.Context, id int) (types.Video, error) {
	if f.err != nil {
		return types.Video{}, f.err
	}
	video, ok := f.videos[id]
	if !ok {
		return types.Video{}, store.ErrNotFound
	}
	return video, nil
}

func newTestCatalog(ids ...int) *fakeVideoCatalog {
	catalog := &fakeVideoCatalog{videos: map[int]types.Video{}}
	for _, id := range ids {
		catalog.videos[id] = types.Video{ID: id}
	}
	return catalog
}

func TestWatchEventConsumerAppendsHistory(t *testing.T) {
	repo := newFakeUserRepo()
	consumer := NewWatchEventConsumer(repo, newTestCatalog(10, 11), nil, "watch-events")

	err := consumer.handle(context.Background(), mq.Message{Data: []byte(`{"user_id":1,"video_id":10}`)})
	require.NoError(t, err)
	err = consumer.handle(context.Background(), mq.Message{Data: []byte(`{"user_id":1,"video_id":11}`)})
	require.NoError(t, err)
	err = consumer.handle(context.Background(), mq.Message{Data: []byte(`{"user_id":1,"video_id":10}`)})
	require.NoError(t, err)

	// Duplicates are kept and arrival order is preserved.
	require.Len(t, repo.history, 3)
	assert.Equal(t, []WatchEvent{
		{UserID: 1, VideoID: 10},
		{UserID: 1, VideoID: 11},
		{UserID: 1, VideoID: 10},
	}, repo.history)
}

func TestWatchEventConsumerDropsBadPayloads(t *testing.T) {
	repo := newFakeUserRepo()
	consumer := NewWatchEventConsumer(repo, newTestCatalog(5), nil, "watch-events")

	// Malformed or incomplete events are acked, not retried.
	assert.NoError(t, consumer.handle(context.Background(), mq.Message{Data: []byte(`{`)}))
	assert.NoError(t, consumer.handle(context.Background(), mq.Message{Data: []byte(`{"user_id":0,"video_id":5}`)}))
	assert.NoError(t, consumer.handle(context.Background(), mq.Message{Data: []byte(`{"user_id":5}`)}))

	assert.Empty(t, repo.history)
}

func TestWatchEventConsumerDropsUnknownVideo(t *testing.T) {
	repo := newFakeUserRepo()
	consumer := NewWatchEventConsumer(repo, newTestCatalog(10), nil, "watch-events")

	// An event for a video that does not exist can never succeed, so it
	// must be acked rather than redelivered forever.
	err := consumer.handle(context.Background(), mq.Message{Data: []byte(`{"user_id":1,"video_id":99}`)})
	assert.NoError(t, err)
	assert.Empty(t, repo.history)
}

func TestWatchEventConsumerDropsUnknownUser(t *testing.T) {
	repo := newFakeUserRepo()
	repo.appendErr = store.ErrNotFound
	consumer := NewWatchEventConsumer(repo, newTestCatalog(10), nil, "watch-events")

	err := consumer.handle(context.Background(), mq.Message{Data: []byte(`{"user_id":404,"video_id":10}`)})
	assert.NoError(t, err)
	assert.Empty(t, repo.history)
}

func TestWatchEventConsumerRetriesTransientErrors(t *testing.T) {
	transient := errors.New("connection reset")

	repo := newFakeUserRepo()
	repo.appendErr = transient
	consumer := NewWatchEventConsumer(repo, newTestCatalog(10), nil, "watch-events")

	err := consumer.handle(context.Background(), mq.Message{Data: []byte(`{"user_id":1,"video_id":10}`)})
	require.Error(t, err)
	assert.ErrorIs(t, err, transient)

	catalog := newTestCatalog(10)
	catalog.err = transient
	consumer = NewWatchEventConsumer(newFakeUserRepo(), catalog, nil, "watch-events")
	err = consumer.handle(context.Background(), mq.Message{Data: []byte(`{"user_id":1,"video_id":10}`)})
	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
}
