package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "shoutbox/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the SQLite-backed store at cfg.Path, creating parent
// directories and running migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) CreatePost(ctx context.Context, p *Post) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Status == "" {
		p.Status = StatusScheduled
	}
	if p.PostNumber == 0 {
		n, err := s.NextPostNumber(ctx)
		if err != nil {
			return err
		}
		p.PostNumber = n
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts(post_number, author, text_content, raw_markup, status, scheduled_at, image_url, media_id, api_error, api_status, created_at, posted_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.PostNumber, p.Author, p.TextContent, p.RawMarkup, string(p.Status),
		nullTime(p.ScheduledAt), nullStr(p.ImageURL), nullStr(p.MediaID),
		nullStr(p.APIError), p.APIStatus,
		fmtTime(p.CreatedAt), nullTime(p.PostedAt),
		fmtTime(p.CreatedAt),
	)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

const postColumns = `id, post_number, author, text_content, raw_markup, status, scheduled_at, image_url, media_id, api_error, api_status, created_at, posted_at`

func (s *sqliteStore) GetPost(ctx context.Context, id int64) (*Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	return scanPost(row)
}

func (s *sqliteStore) SetStatus(ctx context.Context, id int64, st Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET status = ?, updated_at = ? WHERE id = ?`,
		string(st), fmtTime(time.Now()), id)
	if err != nil {
		return err
	}
	return checkFound(res)
}

func (s *sqliteStore) SetArtifact(ctx context.Context, id int64, url string) (string, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE posts SET image_url = ?, updated_at = ?
		 WHERE id = ? AND (image_url IS NULL OR image_url = '')`,
		url, fmtTime(time.Now()), id)
	if err != nil {
		return "", err
	}
	var effective sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT image_url FROM posts WHERE id = ?`, id).Scan(&effective)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return effective.String, nil
}

func (s *sqliteStore) CommitPublished(ctx context.Context, id int64, mediaID string, at time.Time) (bool, error) {
	// First committer wins; a published record is never overwritten.
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts
		 SET status = ?, media_id = ?, posted_at = ?, api_error = NULL, api_status = 0, updated_at = ?
		 WHERE id = ? AND status != ? AND (media_id IS NULL OR media_id = '')`,
		string(StatusPublished), mediaID, fmtTime(at),
		fmtTime(at), id, string(StatusPublished),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) CommitFailed(ctx context.Context, id int64, detail string, httpStatus int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET status = ?, api_error = ?, api_status = ?, updated_at = ?
		 WHERE id = ? AND status != ?`,
		string(StatusFailed), detail, httpStatus,
		fmtTime(time.Now()), id, string(StatusPublished),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) DueScheduled(ctx context.Context, now time.Time, tol time.Duration, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := fmtTime(now.Add(tol))
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM posts
		 WHERE status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		 ORDER BY scheduled_at ASC LIMIT ?`,
		string(StatusScheduled), cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func (s *sqliteStore) StaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	// updated_at marks the claim; processing posts untouched since the
	// cutoff are assumed abandoned by a crashed runner.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM posts
		 WHERE status = ? AND updated_at <= ?
		 ORDER BY id ASC LIMIT ?`,
		string(StatusProcessing), fmtTime(cutoff), limit,
	)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func (s *sqliteStore) NextPostNumber(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(post_number) + 1, ?) FROM posts`, FirstPostNumber,
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	if n < FirstPostNumber {
		n = FirstPostNumber
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*Post, error) {
	var (
		p                 Post
		status            string
		scheduled, posted sql.NullString
		image, media, apiErr sql.NullString
		created           string
	)
	err := row.Scan(&p.ID, &p.PostNumber, &p.Author, &p.TextContent, &p.RawMarkup,
		&status, &scheduled, &image, &media, &apiErr, &p.APIStatus, &created, &posted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status = Status(status)
	p.ImageURL = image.String
	p.MediaID = media.String
	p.APIError = apiErr.String
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		p.CreatedAt = t
	}
	p.ScheduledAt = parseNullTime(scheduled)
	p.PostedAt = parseNullTime(posted)
	return &p, nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func checkFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}

// fmtTime normalizes to UTC before formatting; timestamp columns are
// compared lexicographically, which is only order-correct when every
// writer uses the same offset.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return fmtTime(*t)
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
