package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreBytesWritesAndIndexes(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Config{Dir: dir, PreviewBytes: 8})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	item, err := s.StoreBytes("s1", "relatorio_informacoes_gerais.md", "text/markdown", []byte("# Relatório geral"))
	if err != nil {
		t.Fatalf("StoreBytes: %v", err)
	}
	if item.Path == "" || item.SHA256 == "" {
		t.Fatalf("expected path and sha")
	}
	if filepath.Dir(item.Path) != dir {
		t.Fatalf("expected artifact in %s, got %s", dir, item.Path)
	}
	if !strings.HasSuffix(item.Path, ".md") {
		t.Fatalf("expected .md extension, got %s", item.Path)
	}
	if !strings.HasSuffix(item.Preview, "…") {
		t.Fatalf("expected truncated preview, got %q", item.Preview)
	}

	b, got, ok := s.Read(item.ID)
	if !ok {
		t.Fatalf("expected artifact indexed")
	}
	if string(b) != "# Relatório geral" || got.Mime != "text/markdown" {
		t.Fatalf("unexpected content %q (%s)", b, got.Mime)
	}
}

func TestStoreBytesSameContentSameItem(t *testing.T) {
	s, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a, _ := s.StoreBytes("s1", "chart.html", "text/html", []byte("<html></html>"))
	b, _ := s.StoreBytes("s1", "chart.html", "text/html", []byte("<html></html>"))
	c, _ := s.StoreBytes("s2", "chart.html", "text/html", []byte("<html></html>"))
	if a.ID != b.ID {
		t.Fatalf("expected same id for identical artifact")
	}
	if a.ID == c.ID {
		t.Fatalf("expected different id per session")
	}
	if n := len(s.List("s1")); n != 1 {
		t.Fatalf("expected 1 artifact for s1, got %d", n)
	}
	if n := len(s.List("")); n != 2 {
		t.Fatalf("expected 2 artifacts, got %d", n)
	}
}

func TestDeleteSession(t *testing.T) {
	s, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a, _ := s.StoreBytes("s1", "a.md", "text/markdown", []byte("a"))
	_, _ = s.StoreBytes("s2", "b.md", "text/markdown", []byte("b"))

	if n := s.DeleteSession("s1"); n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if _, ok := s.Get(a.ID); ok {
		t.Fatalf("expected s1 artifact gone")
	}
	if _, err := os.Stat(a.Path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err = %v", err)
	}
	if n := len(s.List("")); n != 1 {
		t.Fatalf("expected 1 artifact left, got %d", n)
	}
}

func TestDeleteSessionKeepsIdenticalContentOfOtherSession(t *testing.T) {
	s, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a, err := s.StoreBytes("sess-a", "r.md", "text/markdown", []byte("mesmo relatório"))
	if err != nil {
		t.Fatalf("StoreBytes a: %v", err)
	}
	b, err := s.StoreBytes("sess-b", "r.md", "text/markdown", []byte("mesmo relatório"))
	if err != nil {
		t.Fatalf("StoreBytes b: %v", err)
	}
	if a.Path == b.Path {
		t.Fatalf("sessions share file %s", a.Path)
	}

	s.DeleteSession("sess-a")
	got, _, ok := s.Read(b.ID)
	if !ok || string(got) != "mesmo relatório" {
		t.Fatalf("expected sess-b artifact readable, ok=%v content=%q", ok, got)
	}
}

func TestParsePath(t *testing.T) {
	id, ok := ParsePath(Path("abc"))
	if !ok || id != "abc" {
		t.Fatalf("unexpected parse: %v %q", ok, id)
	}
	if _, ok := ParsePath("/artifacts/a/b"); ok {
		t.Fatalf("expected nested path rejected")
	}
}
