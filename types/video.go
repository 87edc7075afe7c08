package types

import "time"

// Video represents an uploaded video in the content catalog.
// This service treats videos as read-only; rows are written by the
// upload/transcode pipeline.
type Video struct {
	ID int `json:"id" db:"id"`

	// OwnerID references the user who uploaded the video.
	OwnerID int `json:"owner_id" db:"owner_id"`

	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`

	// VideoURL and ThumbnailURL point at objects in media storage.
	VideoURL     string `json:"video_url" db:"video_url"`
	ThumbnailURL string `json:"thumbnail_url" db:"thumbnail_url"`

	// DurationSeconds is the playback length reported by the pipeline.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	Views int64 `json:"views" db:"views"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WatchEntry is one item of a viewer's watch history: the watched video
// enriched with its owner's public identity.
type WatchEntry struct {
	Video     Video       `json:"video"`
	Owner     PublicOwner `json:"owner"`
	WatchedAt time.Time   `json:"watched_at"`
}
