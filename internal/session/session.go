// Package session keeps the per-upload state that the UI used to hold in
// global page state: the dataset and the reports generated for it.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/golovatskygroup/data-lens/internal/dataset"
	"github.com/golovatskygroup/data-lens/internal/report"
)

var ErrNotFound = errors.New("session not found")

// Session is one uploaded dataset. Requests on a session are serialized with
// Do; the Frame itself is read-only.
type Session struct {
	ID        string
	Frame     *dataset.Frame
	CreatedAt time.Time

	run sync.Mutex

	mu       sync.RWMutex
	reports  map[report.Kind]report.Report
	lastUsed time.Time
}

// Do runs fn while holding the session's request lock.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	s.run.Lock()
	defer s.run.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.touch()
	return fn(ctx)
}

func (s *Session) SetReport(r report.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.Kind] = r
}

func (s *Session) Report(kind report.Kind) (report.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[kind]
	return r, ok
}

// Reports returns the stored reports ordered as report.Kinds.
func (s *Session) Reports() []report.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]report.Report, 0, len(s.reports))
	for _, k := range report.Kinds {
		if r, ok := s.reports[k]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

func (m *Manager) Create(f *dataset.Frame) *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		Frame:     f,
		CreatedAt: now,
		reports:   make(map[report.Kind]report.Report),
		lastUsed:  now,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// List returns sessions oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Expire removes sessions idle since before cutoff and returns their IDs.
func (m *Manager) Expire(cutoff time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			delete(m.sessions, id)
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
