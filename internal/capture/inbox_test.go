package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startInbox(t *testing.T, dir string) *InboxFeed {
	t.Helper()

	cfg := quietConfig()
	cfg.Debounce = 20 * time.Millisecond

	f, err := NewInboxFeed(dir, cfg)
	if err != nil {
		t.Fatalf("NewInboxFeed() failed: %v", err)
	}
	if err := f.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func waitEvent(t *testing.T, f *InboxFeed) Event {
	t.Helper()
	select {
	case ev := <-f.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for inbox event")
		return Event{}
	}
}

func TestNewInboxFeed_EmptyDir(t *testing.T) {
	if _, err := NewInboxFeed("", quietConfig()); err == nil {
		t.Fatal("NewInboxFeed(\"\") should fail")
	}
}

func TestInboxFeed_DeliversAndRemovesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	f := startInbox(t, dir)

	path := filepath.Join(dir, "scan-1.txt")
	writeFile(t, path, "]d1ABC123\n")

	ev := waitEvent(t, f)
	if ev.Payload != "ABC123" {
		t.Errorf("Payload = %q, want %q", ev.Payload, "ABC123")
	}
	if ev.Symbology != SymbologyDataMatrix {
		t.Errorf("Symbology = %v, want datamatrix", ev.Symbology)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("delivered file was not removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInboxFeed_QueuesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "before-start"), "EXISTING")

	f := startInbox(t, dir)

	ev := waitEvent(t, f)
	if ev.Payload != "EXISTING" {
		t.Errorf("Payload = %q, want %q", ev.Payload, "EXISTING")
	}
}

func TestInboxFeed_HoldsUntilResume(t *testing.T) {
	dir := t.TempDir()
	f := startInbox(t, dir)

	writeFile(t, filepath.Join(dir, "a"), "FIRST")
	first := waitEvent(t, f)

	// The consumer pauses on delivery, as the scan controller does.
	f.Pause()
	writeFile(t, filepath.Join(dir, "b"), "SECOND")

	select {
	case ev := <-f.Events():
		t.Fatalf("paused feed delivered %q", ev.Payload)
	case <-time.After(200 * time.Millisecond):
	}

	if f.Pending() == 0 {
		t.Error("Pending() = 0, want the second file queued")
	}

	f.Resume()
	second := waitEvent(t, f)

	if first.Payload != "FIRST" || second.Payload != "SECOND" {
		t.Errorf("got %q then %q, want FIRST then SECOND", first.Payload, second.Payload)
	}
}

func TestInboxFeed_DeliveryPausesFeed(t *testing.T) {
	dir := t.TempDir()
	f := startInbox(t, dir)

	writeFile(t, filepath.Join(dir, "one"), "ONE")
	writeFile(t, filepath.Join(dir, "two"), "TWO")

	waitEvent(t, f)

	// Without a Resume the second file stays queued.
	select {
	case ev := <-f.Events():
		t.Fatalf("feed delivered %q before Resume", ev.Payload)
	case <-time.After(200 * time.Millisecond):
	}

	f.Resume()
	waitEvent(t, f)
}

func TestInboxFeed_IgnoresHiddenAndFiltered(t *testing.T) {
	dir := t.TempDir()
	f := startInbox(t, dir)

	writeFile(t, filepath.Join(dir, ".partial"), "HIDDEN")
	writeFile(t, filepath.Join(dir, "qr"), "QR-Code:WRONG-TYPE")
	writeFile(t, filepath.Join(dir, "empty"), "\n")

	select {
	case ev := <-f.Events():
		t.Fatalf("unexpected event %q", ev.Payload)
	case <-time.After(300 * time.Millisecond):
	}

	if _, err := os.Stat(filepath.Join(dir, ".partial")); err != nil {
		t.Errorf("hidden file should be left alone: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "qr")); !os.IsNotExist(err) {
		t.Error("filtered file should be discarded")
	}
}

func TestInboxFeed_CloseClosesEvents(t *testing.T) {
	dir := t.TempDir()
	cfg := quietConfig()
	f, err := NewInboxFeed(dir, cfg)
	if err != nil {
		t.Fatalf("NewInboxFeed() failed: %v", err)
	}
	if err := f.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if _, ok := <-f.Events(); ok {
		t.Error("events channel should be closed")
	}
	if err := f.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if err := f.Start(); err != ErrClosed {
		t.Errorf("Start() after Close() = %v, want ErrClosed", err)
	}
}
