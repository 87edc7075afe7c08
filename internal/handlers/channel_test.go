package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viewtube/apiserver/config"
	"github.com/viewtube/apiserver/internal/services"
	"github.com/viewtube/apiserver/internal/store"
	"github.com/viewtube/apiserver/types"
)

type fakeSubscriptionRepo struct {
	edges map[[2]int]bool
}

func (f *fakeSubscriptionRepo) Create(ctx context.Context, subscriberID, channelID int) error {
	f.edges[[2]int{subscriberID, channelID}] = true
	return nil
}

func (f *fakeSubscriptionRepo) Delete(ctx context.Context, subscriberID, channelID int) error {
	delete(f.edges, [2]int{subscriberID, channelID})
	return nil
}

func (f *fakeSubscriptionRepo) Exists(ctx context.Context, subscriberID, channelID int) (bool, error) {
	return f.edges[[2]int{subscriberID, channelID}], nil
}

type fakeChannelRepo struct {
	profiles map[string]types.ChannelProfile
	history  map[int][]types.WatchEntry
}

func (f *fakeChannelRepo) Profile(ctx context.Context, viewerID int, username string) (types.ChannelProfile, error) {
	profile, ok := f.profiles[username]
	if !ok {
		return types.ChannelProfile{}, store.ErrNotFound
	}
	return profile, nil
}

func (f *fakeChannelRepo) WatchHistory(ctx context.Context, viewerID int) ([]types.WatchEntry, error) {
	return f.history[viewerID], nil
}

type channelTestEnv struct {
	router      *chi.Mux
	users       *fakeUserRepo
	channels    *fakeChannelRepo
	accessToken string
	viewer      types.User
}

func newChannelTestEnv(t *testing.T) *channelTestEnv {
	t.Helper()

	tokens, err := services.NewTokenIssuer(config.TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    24 * time.Hour,
	})
	require.NoError(t, err)

	users := newFakeUserRepo()
	viewer, err := users.Create(context.Background(), types.User{
		Username: "viewer",
		Email:    "viewer@example.com",
		FullName: "Viewer",
	})
	require.NoError(t, err)

	channels := &fakeChannelRepo{
		profiles: map[string]types.ChannelProfile{},
		history:  map[int][]types.WatchEntry{},
	}
	subs := &fakeSubscriptionRepo{edges: map[[2]int]bool{}}
	channelService := services.NewChannelService(channels, subs, users)

	auth := RequireAuth(tokens)
	router := chi.NewRouter()
	router.Route("/channels", func(r chi.Router) {
		ChannelRouter(r, channelService, auth)
	})
	router.With(auth).Get("/users/history", NewChannelHandler(channelService).WatchHistory)

	accessToken, err := tokens.IssueAccess(viewer.ID)
	require.NoError(t, err)

	return &channelTestEnv{
		router:      router,
		users:       users,
		channels:    channels,
		accessToken: accessToken,
		viewer:      viewer,
	}
}

func (e *channelTestEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: e.accessToken})
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *channelTestEnv) post(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: e.accessToken})
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestChannelProfileEndpoint(t *testing.T) {
	env := newChannelTestEnv(t)
	env.channels.profiles["creator"] = types.ChannelProfile{
		Username:          "creator",
		TotalSubscribers:  3,
		TotalSubscribedTo: 2,
		IsSubscribed:      true,
	}

	rec := env.get(t, "/channels/creator")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var profile types.ChannelProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, 3, profile.TotalSubscribers)
	assert.Equal(t, 2, profile.TotalSubscribedTo)
	assert.True(t, profile.IsSubscribed)
}

func TestChannelProfileNotFound(t *testing.T) {
	env := newChannelTestEnv(t)

	rec := env.get(t, "/channels/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChannelProfileRequiresAuth(t *testing.T) {
	env := newChannelTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/channels/creator", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubscribeToggleEndpoint(t *testing.T) {
	env := newChannelTestEnv(t)
	_, err := env.users.Create(context.Background(), types.User{
		Username: "creator",
		Email:    "creator@example.com",
		FullName: "Creator",
	})
	require.NoError(t, err)

	rec := env.post(t, "/channels/creator/subscribe")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SubscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Subscribed)

	rec = env.post(t, "/channels/creator/subscribe")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Subscribed)
}

func TestSubscribeToSelfRejected(t *testing.T) {
	env := newChannelTestEnv(t)

	rec := env.post(t, "/channels/viewer/subscribe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWatchHistoryEndpoint(t *testing.T) {
	env := newChannelTestEnv(t)
	env.channels.history[env.viewer.ID] = []types.WatchEntry{
		{Video: types.Video{ID: 10, Title: "First"}, Owner: types.PublicOwner{Username: "owner2"}},
		{Video: types.Video{ID: 11, Title: "Second"}, Owner: types.PublicOwner{Username: "owner3"}},
		{Video: types.Video{ID: 10, Title: "First"}, Owner: types.PublicOwner{Username: "owner2"}},
	}

	rec := env.get(t, "/users/history")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var history []types.WatchEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 3)
	assert.Equal(t, 10, history[0].Video.ID)
	assert.Equal(t, 11, history[1].Video.ID)
	assert.Equal(t, 10, history[2].Video.ID)
	assert.Equal(t, "owner2", history[0].Owner.Username)
}
