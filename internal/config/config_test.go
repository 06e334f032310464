package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func TestLoad_Defaults(t *testing.T) {
	v := New()
	v.Set(KeyDataDir, t.TempDir())

	c, err := Load(v)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if c.Dwell != 2000*time.Millisecond {
		t.Errorf("Dwell = %v, want 2s", c.Dwell)
	}
	if c.Symbology != "datamatrix" {
		t.Errorf("Symbology = %q, want datamatrix", c.Symbology)
	}
	if c.Source != SourceStdin {
		t.Errorf("Source = %q, want %q", c.Source, SourceStdin)
	}
	if c.Export.Target != TargetDir {
		t.Errorf("Export.Target = %q, want %q", c.Export.Target, TargetDir)
	}
	if c.Inbox.Dir != filepath.Join(c.DataDir, "inbox") {
		t.Errorf("Inbox.Dir = %q, want under data dir", c.Inbox.Dir)
	}
	if c.Log.File != filepath.Join(c.DataDir, "scandb.log") {
		t.Errorf("Log.File = %q, want under data dir", c.Log.File)
	}
}

func TestConfig_DBPath(t *testing.T) {
	c := Config{DataDir: "/var/lib/scandb"}
	want := filepath.Join("/var/lib/scandb", "SQLite", "barcodes.db")
	if c.DBPath() != want {
		t.Errorf("DBPath() = %q, want %q", c.DBPath(), want)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCANDB_DWELL", "500ms")
	t.Setenv("SCANDB_SOURCE", "inbox")
	t.Setenv("SCANDB_EXPORT_TARGET", "open")
	t.Setenv("SCANDB_INBOX_DIR", "/tmp/drop")

	v := New()
	v.Set(KeyDataDir, t.TempDir())

	c, err := Load(v)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if c.Dwell != 500*time.Millisecond {
		t.Errorf("Dwell = %v, want 500ms", c.Dwell)
	}
	if c.Source != SourceInbox {
		t.Errorf("Source = %q, want inbox", c.Source)
	}
	if c.Export.Target != TargetOpen {
		t.Errorf("Export.Target = %q, want open", c.Export.Target)
	}
	if c.Inbox.Dir != "/tmp/drop" {
		t.Errorf("Inbox.Dir = %q, want /tmp/drop", c.Inbox.Dir)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"zero dwell", KeyDwell, "0s"},
		{"unknown source", KeySource, "camera"},
		{"empty command", KeyCommand, " "},
		{"unknown target", KeyExportTarget, "email"},
		{"empty data dir", KeyDataDir, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(KeyDataDir, t.TempDir())
			if tt.key == KeyCommand {
				v.Set(KeySource, SourceCommand)
			}
			v.Set(tt.key, tt.val)

			if _, err := Load(v); err == nil {
				t.Errorf("Load() with %s=%v should fail", tt.key, tt.val)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scandb.toml")
	content := `
dwell = "1s"
symbology = "qr"

[export]
target = "dir"
dir = "/srv/exports"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	v := New()
	v.Set(KeyDataDir, dir)

	used, err := ReadFile(v, "")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if used != path {
		t.Errorf("ReadFile() used %q, want %q", used, path)
	}

	c, err := Load(v)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if c.Dwell != time.Second {
		t.Errorf("Dwell = %v, want 1s", c.Dwell)
	}
	if c.Symbology != "qr" {
		t.Errorf("Symbology = %q, want qr", c.Symbology)
	}
	if c.Export.Dir != "/srv/exports" {
		t.Errorf("Export.Dir = %q, want /srv/exports", c.Export.Dir)
	}
}

func TestReadFile_Missing(t *testing.T) {
	v := New()
	v.Set(KeyDataDir, t.TempDir())

	used, err := ReadFile(v, "")
	if err != nil {
		t.Fatalf("ReadFile() without a file failed: %v", err)
	}
	if used != "" {
		t.Errorf("ReadFile() used %q, want none", used)
	}

	if _, err := ReadFile(v, filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("ReadFile() with explicit missing path should fail")
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "scandb.toml")

	want := Default()
	want.DataDir = dir
	want.Dwell = 1500 * time.Millisecond

	if err := WriteFile(path, want, false); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		t.Fatalf("written file is not valid TOML: %v", err)
	}
	if raw["dwell"] != "1.5s" {
		t.Errorf("dwell = %v, want 1.5s", raw["dwell"])
	}

	v := New()
	if _, err := ReadFile(v, path); err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	got, err := Load(v)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.Dwell != want.Dwell || got.DataDir != want.DataDir || got.Export != want.Export {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestWriteFile_NoClobber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scandb.toml")
	if err := os.WriteFile(path, []byte("tone = \"none\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	err := WriteFile(path, Default(), false)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("WriteFile() error = %v, want already exists", err)
	}

	if err := WriteFile(path, Default(), true); err != nil {
		t.Errorf("WriteFile(force) failed: %v", err)
	}
}
