// Package publish drives one post through generation, upload and the
// external publish flow, committing the outcome to the store.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"shoutbox/internal/artifact"
	"shoutbox/internal/fontpack"
	"shoutbox/internal/instagram"
	"shoutbox/internal/render"
	"shoutbox/internal/store"
	"shoutbox/internal/worker"
	logx "shoutbox/pkg/logx"
)

// Config tunes the runner.
type Config struct {
	// ScheduleTolerance is how far ahead of its slot a post may be
	// processed. Deliveries earlier than that are deferred.
	ScheduleTolerance time.Duration

	CaptionSuffix string

	// AccountTitle appears in the image header as "@title".
	AccountTitle string

	// FontsDir holds the per-script source fonts and the merged pack.
	FontsDir string

	// RenderOptions overrides the compositor defaults. A zero value means
	// defaults.
	RenderOptions render.Options
}

// Publisher is the external publish API.
type Publisher interface {
	Publish(ctx context.Context, imageURL, caption string) (*instagram.Result, error)
}

// Notifier receives terminal failure alerts. Implementations must not block.
type Notifier interface {
	PublishFailed(ctx context.Context, post *store.Post, detail string)
}

// ComposeFunc renders a spec to PNG bytes.
type ComposeFunc func(ctx context.Context, spec render.Spec) ([]byte, error)

// Runner executes the per-post state machine. Safe for concurrent use;
// runners working the same post serialize on a per-post lock.
type Runner struct {
	store     store.Store
	artifacts artifact.Store
	publisher Publisher
	notifier  Notifier
	compose   ComposeFunc

	cfg   Config
	locks *keyLock
	log   logx.Logger
}

func NewRunner(st store.Store, art artifact.Store, pub Publisher, cfg Config, log logx.Logger) *Runner {
	if cfg.ScheduleTolerance <= 0 {
		cfg.ScheduleTolerance = 2 * time.Minute
	}
	if cfg.RenderOptions == (render.Options{}) {
		cfg.RenderOptions = render.DefaultOptions()
	}
	r := &Runner{
		store:     st,
		artifacts: art,
		publisher: pub,
		cfg:       cfg,
		locks:     newKeyLock(),
		log:       log,
	}
	r.compose = r.composeWithPack
	return r
}

// SetNotifier wires optional operator alerts for terminal failures.
func (r *Runner) SetNotifier(n Notifier) { r.notifier = n }

// SetComposeFunc replaces the rendering step, for tests.
func (r *Runner) SetComposeFunc(f ComposeFunc) { r.compose = f }

// Run processes one post end to end.
//
// The flow has four steps: claim, ensure artifact, publish, commit.
// The per-post lock is held only while claiming and committing; the
// slow middle runs unlocked so a second delivery of the same post
// blocks briefly, sees the claim, and proceeds idempotently.
func (r *Runner) Run(ctx context.Context, postID int64) error {
	unlock := r.locks.lock(postID)
	p, err := r.store.GetPost(ctx, postID)
	if err != nil {
		unlock()
		if errors.Is(err, store.ErrNotFound) {
			return worker.NoRetry(err)
		}
		return err
	}
	if p.Status == store.StatusPublished || p.MediaID != "" {
		unlock()
		r.log.Debug("post already published",
			logx.Int64("post_id", postID),
			logx.String("media_id", p.MediaID))
		return nil
	}
	if p.ScheduledAt != nil {
		if wait := time.Until(*p.ScheduledAt); wait > r.cfg.ScheduleTolerance {
			// Too early; the sweep re-delivers once the slot arrives.
			unlock()
			r.log.Debug("post not due yet",
				logx.Int64("post_id", postID),
				logx.Duration("wait", wait))
			return nil
		}
	}
	if p.Status != store.StatusProcessing {
		if err := r.store.SetStatus(ctx, postID, store.StatusProcessing); err != nil {
			unlock()
			return err
		}
		p.Status = store.StatusProcessing
	}
	unlock()

	// A committed artifact URL is reused verbatim; the image is never
	// regenerated, even when the message text changed since.
	if p.ImageURL == "" {
		data, err := r.compose(ctx, r.specFor(p))
		if err != nil {
			return r.fail(ctx, p, "render", err)
		}
		url, err := r.artifacts.Put(ctx, data, "image/png")
		if err != nil {
			return r.fail(ctx, p, "artifact", err)
		}
		// First writer wins; a racing duplicate adopts the committed URL
		// and its own upload becomes an orphan object.
		effective, err := r.store.SetArtifact(ctx, postID, url)
		if err != nil {
			return err
		}
		p.ImageURL = effective
		r.log.Info("artifact committed",
			logx.Int64("post_id", postID),
			logx.String("url", effective))
	}

	caption := BuildCaption(p.TextContent, r.cfg.CaptionSuffix)
	res, err := r.publisher.Publish(ctx, p.ImageURL, caption)
	if err != nil {
		return r.fail(ctx, p, "publish", err)
	}

	unlock = r.locks.lock(postID)
	defer unlock()
	won, err := r.store.CommitPublished(ctx, postID, res.MediaID, time.Now())
	if err != nil {
		return err
	}
	if !won {
		// Another runner got there first; its media id stands.
		r.log.Warn("publish race lost",
			logx.Int64("post_id", postID),
			logx.String("media_id", res.MediaID))
		return nil
	}
	r.log.Info("post published",
		logx.Int64("post_id", postID),
		logx.Int("post_number", p.PostNumber),
		logx.String("media_id", res.MediaID))
	return nil
}

func (r *Runner) specFor(p *store.Post) render.Spec {
	username := p.Author
	if username == "" {
		username = "Anonymous"
	}
	when := p.CreatedAt
	if p.ScheduledAt != nil {
		when = *p.ScheduledAt
	}
	msg := p.RawMarkup
	if msg == "" {
		msg = p.TextContent
	}
	return render.Spec{
		Username:  username,
		PostLabel: strconv.Itoa(p.PostNumber),
		Message:   msg,
		ShortDate: when.Format("Jan 2"),
		Title:     r.cfg.AccountTitle,
		Options:   r.cfg.RenderOptions,
	}
}

// fail records the failure and classifies it for the retry machinery.
// Invalid input and broken font installs cannot heal on retry; those
// come back wrapped in NoRetry. Everything else is left retryable, and
// a later attempt re-claims the post from its failed state.
func (r *Runner) fail(ctx context.Context, p *store.Post, step string, err error) error {
	detail := err.Error()
	httpStatus := 0

	var igErr *instagram.Error
	if errors.As(err, &igErr) {
		httpStatus = igErr.HTTPStatus
	}

	committed, cerr := r.store.CommitFailed(ctx, p.ID, detail, httpStatus)
	if cerr != nil {
		r.log.Error("failure commit failed",
			logx.Int64("post_id", p.ID),
			logx.Err(cerr))
	}
	if !committed {
		// Published in the meantime; the failure is moot.
		return nil
	}
	r.log.Warn("post failed",
		logx.Int64("post_id", p.ID),
		logx.String("step", step),
		logx.Err(err))
	if r.notifier != nil {
		r.notifier.PublishFailed(ctx, p, fmt.Sprintf("%s: %s", step, detail))
	}

	var vErr *render.ValidationError
	var fErr *fontpack.FontError
	if errors.As(err, &vErr) || errors.As(err, &fErr) {
		return worker.NoRetry(err)
	}
	return err
}

func (r *Runner) composeWithPack(_ context.Context, spec render.Spec) ([]byte, error) {
	pack, err := fontpack.Ensure(r.cfg.FontsDir)
	if err != nil {
		return nil, err
	}
	return render.NewCompositor(pack).Compose(spec)
}
