package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viewtube/apiserver/internal/services"
	"github.com/viewtube/apiserver/internal/storage"
	"github.com/viewtube/apiserver/internal/store"
	"github.com/viewtube/apiserver/types"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"

	maxMultipartMemory = 32 << 20
	maxMediaBytes      = 16 << 20

	formFieldUsername = "username"
	formFieldEmail    = "email"
	formFieldFullName = "fullName"
	formFieldPassword = "password"
	formFieldAvatar   = "avatar"
	formFieldCover    = "coverImage"

	mediaKindAvatar = "avatar"
	mediaKindCover  = "cover"
)

// AuthHandler provides the session-lifecycle and profile endpoints.
type AuthHandler struct {
	sessions *services.SessionService
	users    *services.UserService
	media    *storage.MediaStore
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(sessions *services.SessionService, users *services.UserService, media *storage.MediaStore) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		users:    users,
		media:    media,
	}
}

// AuthRouter registers auth and profile routes on the given router.
func AuthRouter(
	r chi.Router,
	sessions *services.SessionService,
	users *services.UserService,
	media *storage.MediaStore,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewAuthHandler(sessions, users, media)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/refresh", handler.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/logout", handler.Logout)
		r.Post("/change-password", handler.ChangePassword)
		r.Get("/me", handler.Me)
		r.Patch("/account", handler.UpdateAccount)
		r.Patch("/avatar", handler.UpdateAvatar)
		r.Patch("/cover", handler.UpdateCover)
	})
}

// RequireAuth enforces access-token authentication and injects the
// subject into context. The token is read from the accessToken cookie
// first, then from the Authorization header.
func RequireAuth(tokens *services.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := accessTokenFromRequest(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			userID, err := tokens.VerifyAccess(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextSubjectKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Register creates a new user account from a multipart form. The
// avatar file is required, the cover image optional; both are stored
// in the media bucket before the user row is written.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	username := strings.TrimSpace(r.FormValue(formFieldUsername))
	email := strings.TrimSpace(r.FormValue(formFieldEmail))
	fullName := strings.TrimSpace(r.FormValue(formFieldFullName))
	password := r.FormValue(formFieldPassword)
	if username == "" || email == "" || fullName == "" || password == "" {
		writeError(w, http.StatusBadRequest, "all fields are required")
		return
	}

	avatar, err := parseMediaFile(r.MultipartForm, formFieldAvatar, maxMediaBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if avatar.Data == nil {
		writeError(w, http.StatusBadRequest, "avatar is required")
		return
	}

	cover, err := parseMediaFile(r.MultipartForm, formFieldCover, maxMediaBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	avatarURL, err := h.uploadMedia(r.Context(), mediaKindAvatar, username, avatar)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}
	var coverURL string
	if cover.Data != nil {
		coverURL, err = h.uploadMedia(r.Context(), mediaKindCover, username, cover)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store cover image")
			return
		}
	}

	user, err := h.sessions.Register(r.Context(), services.RegisterParams{
		Username:  username,
		Email:     email,
		FullName:  fullName,
		Password:  password,
		AvatarURL: avatarURL,
		CoverURL:  coverURL,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "user already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login verifies credentials and opens a session. Both tokens are set
// as HTTP-only secure cookies and returned in the body for non-cookie
// clients.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	identity := strings.TrimSpace(req.Username)
	if identity == "" {
		identity = strings.TrimSpace(req.Email)
	}
	if identity == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username or email and password are required")
		return
	}

	user, pair, err := h.sessions.Login(r.Context(), identity, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user does not exist")
		case errors.Is(err, services.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
		}
		return
	}

	setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, AuthResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Refresh rotates the session token pair. The refresh token is read
// from the refreshToken cookie, falling back to the request body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := refreshTokenFromRequest(r)
	if refreshToken == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, services.ErrSessionExpired):
			writeError(w, http.StatusUnauthorized, "refresh token expired or used")
		default:
			writeError(w, http.StatusInternalServerError, "failed to refresh session")
		}
		return
	}

	setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, pair)
}

// Logout clears the session cookies and the stored refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.sessions.Logout(r.Context(), userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword re-verifies the current password before storing the
// new hash.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "all fields are required")
		return
	}

	if err := h.sessions.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "current password is incorrect")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// Me returns the current authenticated user's sanitized record.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateAccount updates the caller's full name and email.
func (h *AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if req.FullName == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "all fields are required")
		return
	}

	user, err := h.users.UpdateAccount(r.Context(), userID, req.FullName, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "email already in use")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update account")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateAvatar replaces the caller's avatar image.
func (h *AuthHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, formFieldAvatar, mediaKindAvatar, h.users.UpdateAvatar,
		func(u types.User) string { return u.AvatarURL })
}

// UpdateCover replaces the caller's cover image.
func (h *AuthHandler) UpdateCover(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, formFieldCover, mediaKindCover, h.users.UpdateCover,
		func(u types.User) string { return u.CoverURL })
}

func (h *AuthHandler) updateMedia(
	w http.ResponseWriter,
	r *http.Request,
	field, kind string,
	update func(ctx context.Context, id int, url string) (types.User, error),
	previous func(u types.User) string,
) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, err := parseMediaFile(r.MultipartForm, field, maxMediaBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if file.Data == nil {
		writeError(w, http.StatusBadRequest, field+" file is required")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	url, err := h.uploadMedia(r.Context(), kind, user.Username, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store "+kind+" image")
		return
	}

	updated, err := update(r.Context(), userID, url)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update "+kind)
		return
	}

	// The record now points at the new object; the replaced one is
	// garbage. A failed delete only leaves an orphan behind.
	if old := previous(user); old != "" {
		if err := h.media.Remove(r.Context(), old); err != nil {
			log.Printf("remove replaced %s object: %v", kind, err)
		}
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *AuthHandler) uploadMedia(ctx context.Context, kind, userKey string, file MediaFile) (string, error) {
	if h.media == nil {
		return "", errors.New("media storage is not configured")
	}
	return h.media.Upload(
		ctx,
		kind,
		userKey,
		file.Filename,
		bytes.NewReader(file.Data),
		int64(len(file.Data)),
		file.ContentType,
	)
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UpdateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type AuthResponse struct {
	User         types.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func setSessionCookies(w http.ResponseWriter, pair services.TokenPair) {
	http.SetCookie(w, sessionCookie(accessCookieName, pair.AccessToken, 0))
	http.SetCookie(w, sessionCookie(refreshCookieName, pair.RefreshToken, 0))
}

func clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, sessionCookie(accessCookieName, "", -1))
	http.SetCookie(w, sessionCookie(refreshCookieName, "", -1))
}

func sessionCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// accessTokenFromRequest prefers the access cookie over the bearer
// header.
func accessTokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(accessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// refreshTokenFromRequest prefers the refresh cookie over the body
// field.
func refreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.RefreshToken)
}
