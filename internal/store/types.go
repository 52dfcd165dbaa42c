package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: post not found")

// Status is the single source of truth for how far a post has travelled
// through the pipeline.
type Status string

const (
	// StatusScheduled: approved upstream, waiting for its publish slot.
	StatusScheduled Status = "SCHEDULED"
	// StatusProcessing: a runner has claimed the post.
	StatusProcessing Status = "PROCESSING"
	// StatusPublished: terminal; the external media id is committed.
	StatusPublished Status = "PUBLISHED"
	// StatusFailed: terminal until an operator or the sweep re-submits.
	StatusFailed Status = "FAILED"
)

// FirstPostNumber seeds the public sequential numbering.
const FirstPostNumber = 2100

// Post is one content record moving through generation/upload/publish.
type Post struct {
	ID         int64
	PostNumber int
	Author     string

	// TextContent is the canonical clean text (no tags) used for captions.
	TextContent string
	// RawMarkup is the styled source the image is generated from. It may be
	// empty for legacy records; generation then falls back to TextContent.
	RawMarkup string

	Status      Status
	ScheduledAt *time.Time

	// ImageURL is the committed artifact. Once set it is reused across
	// retries; the image is never regenerated.
	ImageURL string

	// MediaID is the external id returned on successful publish.
	// Never overwritten once set.
	MediaID   string
	APIError  string
	APIStatus int

	CreatedAt time.Time
	PostedAt  *time.Time
}

// Config configures the SQLite backend.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Store is the persistence API consumed by the publish pipeline.
type Store interface {
	CreatePost(ctx context.Context, p *Post) error
	GetPost(ctx context.Context, id int64) (*Post, error)

	SetStatus(ctx context.Context, id int64, st Status) error

	// SetArtifact commits url as the post's artifact unless one is already
	// recorded, and returns the URL in effect afterwards. First writer
	// wins; racing generators must adopt the returned URL.
	SetArtifact(ctx context.Context, id int64, url string) (string, error)

	// CommitPublished marks the post published with its media id, clearing
	// any prior error. It reports false when another runner already
	// published the post; the existing record is left untouched.
	CommitPublished(ctx context.Context, id int64, mediaID string, at time.Time) (bool, error)

	// CommitFailed records a terminal failure with operator-facing detail.
	// It reports false when the post is already published.
	CommitFailed(ctx context.Context, id int64, detail string, httpStatus int) (bool, error)

	// DueScheduled lists scheduled posts whose time has come (within tol).
	DueScheduled(ctx context.Context, now time.Time, tol time.Duration, limit int) ([]int64, error)

	// StaleProcessing lists posts stuck in processing since before cutoff.
	StaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)

	NextPostNumber(ctx context.Context) (int, error)

	Close() error
}
