package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, KeyToken); err != nil || ok {
		t.Fatalf("Get(absent) = ok %v, err %v; want absent", ok, err)
	}
	if err := s.Set(ctx, KeyToken, "tok-1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, KeyToken, "tok-2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := s.Get(ctx, KeyToken)
	if err != nil || !ok || got != "tok-2" {
		t.Fatalf("Get() = %q, %v, %v; want %q", got, ok, err, "tok-2")
	}
	if err := s.Remove(ctx, KeyToken); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := s.Remove(ctx, KeyToken); err != nil {
		t.Fatalf("Remove(absent) error = %v", err)
	}
	if _, ok, err := s.Get(ctx, KeyToken); err != nil || ok {
		t.Fatalf("Get(removed) = ok %v, err %v; want absent", ok, err)
	}
}

func TestMemory(t *testing.T) {
	t.Parallel()
	exerciseStorage(t, NewMemory())
}

func TestFile(t *testing.T) {
	t.Parallel()
	exerciseStorage(t, NewFile(filepath.Join(t.TempDir(), "nested", "state.json")))
}

func TestFilePersistsAcrossInstances(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	if err := NewFile(path).Set(ctx, KeySnapshot, `{"id":"1"}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := NewFile(path).Get(ctx, KeySnapshot)
	if err != nil || !ok || got != `{"id":"1"}` {
		t.Fatalf("Get() = %q, %v, %v", got, ok, err)
	}
}

func TestFileCorruptStateIsAnError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, _, err := NewFile(path).Get(context.Background(), KeyToken); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestScopedSeparatesVisitorsButSharesDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := NewMemory()
	a := NewScoped(base, "a", KeyDirectory)
	b := NewScoped(base, "b", KeyDirectory)

	if err := a.Set(ctx, KeyToken, "tok-a"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok, _ := b.Get(ctx, KeyToken); ok {
		t.Fatal("visitor b must not see visitor a's token")
	}
	if err := a.Set(ctx, KeyDirectory, "[]"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, ok, _ := b.Get(ctx, KeyDirectory); !ok || got != "[]" {
		t.Fatalf("shared directory = %q, %v; want %q", got, ok, "[]")
	}
	if got, ok, _ := base.Get(ctx, "visitor:a:"+KeyToken); !ok || got != "tok-a" {
		t.Fatalf("base scoped key = %q, %v", got, ok)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, closeFn, err := Open(ctx, Options{Backend: "memory"})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("Open(memory) = %T, want *Memory", s)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	if _, _, err := Open(ctx, Options{Backend: "file"}); err == nil {
		t.Fatal("expected error for file backend without path")
	}
	if _, _, err := Open(ctx, Options{Backend: "redis"}); err == nil {
		t.Fatal("expected error for redis backend without url")
	}
	if _, _, err := Open(ctx, Options{Backend: "etcd"}); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("Open(etcd) error = %v, want ErrUnknownBackend", err)
	}
}

func TestRedis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	s, err := NewRedisFromURL(context.Background(), url, "ecolearn-test:")
	if err != nil {
		t.Fatalf("NewRedisFromURL() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	exerciseStorage(t, s)
}

func TestPostgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if _, err := Migrate(url); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	s, err := NewPostgresFromURL(context.Background(), url)
	if err != nil {
		t.Fatalf("NewPostgresFromURL() error = %v", err)
	}
	t.Cleanup(s.Close)
	exerciseStorage(t, s)
}
