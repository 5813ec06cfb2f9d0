package main

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestCollect_sortsAndSkipsNonMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"002_audit_log.up.sql",
		"001_init.up.sql",
		"001_init.down.sql",
		"notes.md",
	} {
		touch(t, dir, name)
	}

	ms, err := collect(dir)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("collected %d migrations, want 2", len(ms))
	}
	if ms[0].version != 1 || ms[1].version != 2 {
		t.Errorf("versions out of order: %d, %d", ms[0].version, ms[1].version)
	}
}

func TestCollect_rejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "003_one.up.sql")
	touch(t, dir, "003_other.up.sql")

	if _, err := collect(dir); err == nil {
		t.Error("expected error for duplicate version prefix")
	}
}

func TestParseVersion(t *testing.T) {
	cases := []struct {
		name    string
		want    int64
		wantErr bool
	}{
		{"001_init.up.sql", 1, false},
		{"42_backfill.up.sql", 42, false},
		{"init.sql", 0, true},
		{"abc_init.up.sql", 0, true},
	}
	for _, tc := range cases {
		got, err := parseVersion(tc.name)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseVersion(%q): expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseVersion(%q): %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseVersion(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
}
