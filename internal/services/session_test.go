package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viewtube/apiserver/internal/store"
	"github.com/viewtube/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// fakeUserRepo is an in-memory UserRepository for service tests.
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]*types.User

	history   []WatchEvent
	appendErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int]*types.User{}}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return *user, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Username == strings.ToLower(username) {
			return *user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByIdentity(ctx context.Context, identity string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity = strings.ToLower(identity)
	for _, user := range f.users {
		if user.Username == identity || user.Email == identity {
			return *user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = f.nextID
	f.nextID++
	f.users[user.ID] = &user
	return user, nil
}

func (f *fakeUserRepo) SetRefreshToken(ctx context.Context, id int, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.RefreshToken = token
	return nil
}

func (f *fakeUserRepo) RotateRefreshToken(ctx context.Context, id int, current, next string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok || user.RefreshToken != current {
		return store.ErrStaleToken
	}
	user.RefreshToken = next
	return nil
}

func (f *fakeUserRepo) UpdateAccount(ctx context.Context, id int, fullName, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.FullName = fullName
	user.Email = email
	return *user, nil
}

func (f *fakeUserRepo) UpdatePasswordHash(ctx context.Context, id int, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (f *fakeUserRepo) UpdateAvatar(ctx context.Context, id int, avatarURL string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.AvatarURL = avatarURL
	return *user, nil
}

func (f *fakeUserRepo) UpdateCover(ctx context.Context, id int, coverURL string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.CoverURL = coverURL
	return *user, nil
}

func (f *fakeUserRepo) AppendWatchHistory(ctx context.Context, userID, videoID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.history = append(f.history, WatchEvent{UserID: userID, VideoID: videoID})
	return nil
}

func (f *fakeUserRepo) storedRefreshToken(id int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].RefreshToken
}

func newTestSessionService(t *testing.T) (*SessionService, *fakeUserRepo) {
	t.Helper()
	issuer, err := NewTokenIssuer(testTokenConfig())
	require.NoError(t, err)
	repo := newFakeUserRepo()
	return NewSessionService(repo, issuer), repo
}

func registerTestUser(t *testing.T, svc *SessionService) types.User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterParams{
		Username:  "Alice",
		Email:     "Alice@Example.com",
		FullName:  "Alice Doe",
		Password:  "s3cret-pass",
		AvatarURL: "http://media/avatar/alice.png",
	})
	require.NoError(t, err)
	return user
}

func TestRegisterNormalizesIdentity(t *testing.T) {
	svc, _ := newTestSessionService(t)

	user := registerTestUser(t, svc)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
}

func TestRegisterDuplicateCaseInsensitive(t *testing.T) {
	svc, _ := newTestSessionService(t)
	registerTestUser(t, svc)

	_, err := svc.Register(context.Background(), RegisterParams{
		Username: "bob",
		Email:    "ALICE@example.COM",
		FullName: "Bob",
		Password: "pw",
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestLoginAfterRegister(t *testing.T) {
	svc, repo := newTestSessionService(t)
	registered := registerTestUser(t, svc)

	user, pair, err := svc.Login(context.Background(), "alice", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, pair.RefreshToken, repo.storedRefreshToken(user.ID))

	// Login by email works too.
	_, _, err = svc.Login(context.Background(), "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
}

func TestLoginFailures(t *testing.T) {
	svc, _ := newTestSessionService(t)
	registerTestUser(t, svc)

	_, _, err := svc.Login(context.Background(), "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, _, err = svc.Login(context.Background(), "alice", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotationIsSingleUse(t *testing.T) {
	svc, repo := newTestSessionService(t)
	user := registerTestUser(t, svc)

	_, first, err := svc.Login(context.Background(), "alice", "s3cret-pass")
	require.NoError(t, err)

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, second.RefreshToken, repo.storedRefreshToken(user.ID))

	// The rotated-out token fails closed even though its signature is
	// still valid.
	_, err = svc.Refresh(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// The replacement still works.
	_, err = svc.Refresh(context.Background(), second.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	svc, _ := newTestSessionService(t)

	_, err := svc.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	svc, repo := newTestSessionService(t)
	user := registerTestUser(t, svc)

	_, pair, err := svc.Login(context.Background(), "alice", "s3cret-pass")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), user.ID))
	assert.Empty(t, repo.storedRefreshToken(user.ID))

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// Logout is idempotent.
	require.NoError(t, svc.Logout(context.Background(), user.ID))
}

func TestLastLoginWins(t *testing.T) {
	svc, _ := newTestSessionService(t)
	registerTestUser(t, svc)

	_, first, err := svc.Login(context.Background(), "alice", "s3cret-pass")
	require.NoError(t, err)
	_, second, err := svc.Login(context.Background(), "alice", "s3cret-pass")
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = svc.Refresh(context.Background(), second.RefreshToken)
	require.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	svc, repo := newTestSessionService(t)
	user := registerTestUser(t, svc)
	originalHash := repo.users[user.ID].PasswordHash

	err := svc.ChangePassword(context.Background(), user.ID, "wrong-pass", "new-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, originalHash, repo.users[user.ID].PasswordHash)

	require.NoError(t, svc.ChangePassword(context.Background(), user.ID, "s3cret-pass", "new-pass"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[user.ID].PasswordHash), []byte("new-pass")))

	_, _, err = svc.Login(context.Background(), "alice", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(context.Background(), "alice", "new-pass")
	require.NoError(t, err)
}
