package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	logx "shoutbox/pkg/logx"
)

// LocalConfig configures the filesystem backend. A separate web server
// is expected to serve Dir under BaseURL.
type LocalConfig struct {
	Dir     string
	BaseURL string
}

type localStore struct {
	cfg LocalConfig
	log logx.Logger
}

func newLocal(cfg LocalConfig, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("local artifact dir is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("local artifact base_url is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, &Error{Backend: "local", Err: err}
	}
	return &localStore{cfg: cfg, log: log}, nil
}

func (s *localStore) Put(_ context.Context, data []byte, contentType string) (string, error) {
	ext := ".bin"
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	}
	name := uuid.NewString() + ext

	// Temp file plus rename keeps half-written artifacts invisible.
	tmp, err := os.CreateTemp(s.cfg.Dir, ".artifact-*")
	if err != nil {
		return "", &Error{Backend: "local", Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", &Error{Backend: "local", Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", &Error{Backend: "local", Err: err}
	}
	if err := os.Rename(tmpName, filepath.Join(s.cfg.Dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return "", &Error{Backend: "local", Err: err}
	}

	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/" + name
	s.log.Debug("artifact written",
		logx.String("file", name),
		logx.Int("bytes", len(data)))
	return url, nil
}
