package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryStore struct {
	mu    sync.Mutex
	posts map[int64]*Post
	seq   int64

	updated map[int64]time.Time
}

// NewMemory returns an in-memory Store with the same semantics as the
// SQLite backend. State is lost on process exit.
func NewMemory() Store {
	return &memoryStore{
		posts:   make(map[int64]*Post),
		updated: make(map[int64]time.Time),
	}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) CreatePost(_ context.Context, p *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Status == "" {
		p.Status = StatusScheduled
	}
	if p.PostNumber == 0 {
		p.PostNumber = m.nextNumberLocked()
	}
	m.seq++
	p.ID = m.seq
	cp := *p
	m.posts[p.ID] = &cp
	m.updated[p.ID] = p.CreatedAt
	return nil
}

func (m *memoryStore) GetPost(_ context.Context, id int64) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryStore) SetStatus(_ context.Context, id int64, st Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = st
	m.updated[id] = time.Now()
	return nil
}

func (m *memoryStore) SetArtifact(_ context.Context, id int64, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return "", ErrNotFound
	}
	if p.ImageURL == "" {
		p.ImageURL = url
		m.updated[id] = time.Now()
	}
	return p.ImageURL, nil
}

func (m *memoryStore) CommitPublished(_ context.Context, id int64, mediaID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status == StatusPublished || p.MediaID != "" {
		return false, nil
	}
	p.Status = StatusPublished
	p.MediaID = mediaID
	t := at
	p.PostedAt = &t
	p.APIError = ""
	p.APIStatus = 0
	m.updated[id] = at
	return true, nil
}

func (m *memoryStore) CommitFailed(_ context.Context, id int64, detail string, httpStatus int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status == StatusPublished {
		return false, nil
	}
	p.Status = StatusFailed
	p.APIError = detail
	p.APIStatus = httpStatus
	m.updated[id] = time.Now()
	return true, nil
}

func (m *memoryStore) DueScheduled(_ context.Context, now time.Time, tol time.Duration, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := now.Add(tol)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for id, p := range m.posts {
		if p.Status == StatusScheduled && p.ScheduledAt != nil && !p.ScheduledAt.After(cutoff) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) StaleProcessing(_ context.Context, cutoff time.Time, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for id, p := range m.posts {
		if p.Status == StatusProcessing && !m.updated[id].After(cutoff) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) NextPostNumber(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextNumberLocked(), nil
}

func (m *memoryStore) nextNumberLocked() int {
	max := 0
	for _, p := range m.posts {
		if p.PostNumber > max {
			max = p.PostNumber
		}
	}
	if max == 0 {
		return FirstPostNumber
	}
	return max + 1
}
