// Package artifact stores rendered images and hands back stable public
// URLs. Committed URLs are reused verbatim across retries, so backends
// must write to unique keys and never mutate an object in place.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	logx "shoutbox/pkg/logx"
)

// Store uploads one immutable artifact and returns its public URL.
type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

// Error wraps a backend failure. Publish treats these as retryable.
type Error struct {
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("artifact %s: %v", e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config selects and configures the artifact backend.
type Config struct {
	Backend string
	S3      S3Config
	Local   LocalConfig
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "s3":
		return newS3(ctx, cfg.S3, log)
	case "local":
		return newLocal(cfg.Local, log)
	default:
		return nil, errors.New("unknown artifact backend: " + cfg.Backend)
	}
}
