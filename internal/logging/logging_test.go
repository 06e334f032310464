package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scandb.log")

	logs, err := Open(Options{File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	logs.For("store").Printf("Database opened, found %d existing codes", 3)
	if err := logs.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "[store] ") || !strings.Contains(line, "found 3 existing codes") {
		t.Errorf("log line = %q", line)
	}
}

func TestOpen_Verbose(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "scandb.log")

	logs, err := Open(Options{File: path, Verbose: true, Stderr: &stderr})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer logs.Close()

	logs.For("scan").Println("Scan loop started")

	if !strings.Contains(stderr.String(), "[scan] ") {
		t.Errorf("stderr = %q, want mirrored line", stderr.String())
	}
}

func TestOpen_NoOutputs(t *testing.T) {
	logs, err := Open(Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	logs.For("x").Println("dropped")
	if err := logs.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

func TestDiscard(t *testing.T) {
	logs := Discard()
	logs.For("capture").Println("dropped")
	if err := logs.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}
