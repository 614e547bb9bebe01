// Package artifacts stores downloadable outputs (report markdown, chart pages)
// on disk and indexes them by content hash.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	SHA256    string    `json:"sha256"`
	Bytes     int       `json:"bytes"`
	Mime      string    `json:"mime"`
	Session   string    `json:"session,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Preview   string    `json:"preview,omitempty"`
}

type Store struct {
	dir        string
	previewMax int
	mu         sync.Mutex
	byID       map[string]Item
	ordered    []string
}

type Config struct {
	Dir          string
	PreviewBytes int
}

func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "datalens-artifacts")
	}
	if cfg.PreviewBytes <= 0 {
		cfg.PreviewBytes = 8 * 1024
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create dir: %w", err)
	}
	return &Store{
		dir:        cfg.Dir,
		previewMax: cfg.PreviewBytes,
		byID:       map[string]Item{},
	}, nil
}

func (s *Store) Dir() string { return s.dir }

// StoreBytes writes b under a name derived from name and the item ID. The ID is
// unique per (session, name, content), so storing the same report twice
// returns the same item.
func (s *Store) StoreBytes(session, name, mime string, b []byte) (*Item, error) {
	if strings.TrimSpace(name) == "" {
		name = "artifact"
	}
	if strings.TrimSpace(mime) == "" {
		mime = "application/octet-stream"
	}

	sum := sha256.Sum256(b)
	sha := hex.EncodeToString(sum[:])
	idSum := sha256.Sum256([]byte(session + "\x00" + name + "\x00" + sha))
	id := hex.EncodeToString(idSum[:])[:32]

	s.mu.Lock()
	if it, ok := s.byID[id]; ok {
		s.mu.Unlock()
		return &it, nil
	}
	s.mu.Unlock()

	ext := filepath.Ext(name)
	base := sanitizeFileComponent(strings.TrimSuffix(name, ext))
	if base == "" {
		base = "artifact"
	}
	now := time.Now().UTC()
	// The ID is session scoped, so sessions never share a file.
	filename := fmt.Sprintf("%s-%s%s", base, id, sanitizeExt(ext))
	path := filepath.Join(s.dir, filename)

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return nil, fmt.Errorf("artifacts: write: %w", err)
	}

	item := Item{
		ID:        id,
		Name:      name,
		Path:      path,
		SHA256:    sha,
		Bytes:     len(b),
		Mime:      mime,
		Session:   session,
		CreatedAt: now,
	}
	if strings.HasPrefix(mime, "text/") {
		item.Preview = string(bytesPreview(b, s.previewMax))
	}

	s.mu.Lock()
	s.byID[id] = item
	s.ordered = append(s.ordered, id)
	s.mu.Unlock()
	return &item, nil
}

// List returns items in insertion order, optionally filtered by session.
func (s *Store) List(session string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, 0, len(s.byID))
	for _, id := range s.ordered {
		it, ok := s.byID[id]
		if !ok {
			continue
		}
		if session != "" && it.Session != session {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (s *Store) Get(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.byID[id]
	return it, ok
}

func (s *Store) Read(id string) ([]byte, Item, bool) {
	it, ok := s.Get(id)
	if !ok {
		return nil, Item{}, false
	}
	b, err := os.ReadFile(it.Path)
	if err != nil {
		return nil, Item{}, false
	}
	return b, it, true
}

// DeleteSession drops every artifact of a session from the index and disk.
func (s *Store) DeleteSession(session string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	kept := s.ordered[:0]
	for _, id := range s.ordered {
		it := s.byID[id]
		if it.Session != session {
			kept = append(kept, id)
			continue
		}
		_ = os.Remove(it.Path)
		delete(s.byID, id)
		n++
	}
	s.ordered = kept
	return n
}

func bytesPreview(b []byte, max int) []byte {
	if max <= 0 || len(b) == 0 {
		return nil
	}
	if len(b) <= max {
		return b
	}
	return append(append([]byte{}, b[:max]...), []byte("…")...)
}

var reSafe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeFileComponent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = reSafe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._-")
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}

func sanitizeExt(ext string) string {
	ext = sanitizeFileComponent(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return ""
	}
	return "." + ext
}
