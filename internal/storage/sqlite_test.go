package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesDatabaseFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, dbFile)); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

// Reopening a database must not re-apply migrations.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := s1.SetProfileKey("style_profile", "{}"); err != nil {
		t.Fatalf("SetProfileKey: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
	if got, err := s2.GetProfileKey("style_profile"); err != nil || got != "{}" {
		t.Errorf("data lost across reopen: %q, %v", got, err)
	}
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_later.sql": {Data: []byte("SELECT 1;")},
		"migrations/002_next.sql":  {Data: []byte("SELECT 1;")},
		"migrations/001_init.sql":  {Data: []byte("SELECT 1;")},
		"migrations/README.md":     {Data: []byte("docs")},
	}
	got, err := listMigrations(fsys)
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}
	want := []int{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("got %d migrations, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.version != want[i] {
			t.Errorf("migration %d version = %d, want %d", i, m.version, want[i])
		}
	}
}

func TestListMigrations_Rejects(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"duplicate version": {
			"migrations/001_a.sql": {Data: []byte("")},
			"migrations/001_b.sql": {Data: []byte("")},
		},
		"unnumbered": {
			"migrations/init.sql": {Data: []byte("")},
		},
	}
	for name, fsys := range cases {
		if _, err := listMigrations(fsys); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_samples_added", "idx_samples_untrained", "idx_jobs_status_run_after", "idx_generations_created"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestProfileKeyUpsert(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetProfileKey("style_profile"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetProfileKey on empty store: %v, want ErrNotFound", err)
	}

	for _, v := range []string{`{"schemaVersion":1}`, `{"schemaVersion":2}`} {
		if err := s.SetProfileKey("style_profile", v); err != nil {
			t.Fatalf("SetProfileKey: %v", err)
		}
		got, err := s.GetProfileKey("style_profile")
		if err != nil {
			t.Fatalf("GetProfileKey: %v", err)
		}
		if got != v {
			t.Errorf("value = %q, want %q", got, v)
		}
	}

	var rows int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profile_kv`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("%d rows after upsert, want 1", rows)
	}
}

func TestPing(t *testing.T) {
	s := openTestStore(t)
	if err := s.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	s.Close()
	if err := s.Ping(t.Context()); err == nil {
		t.Error("Ping succeeded on a closed store")
	}
}
