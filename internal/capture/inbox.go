package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// InboxFeed watches a directory for decoded payload files.
//
// Each regular file dropped into the directory holds one payload. A file is
// read once it has been quiet for the debounce interval, delivered, and
// then removed. Dot files are ignored so writers can stage content under a
// hidden name and rename it into place.
//
// Delivering a payload pauses the feed until Resume; files arriving in the
// meantime wait in the queue, so no payload is consumed while the consumer
// is busy with the previous one.
type InboxFeed struct {
	dir     string
	config  Config
	watcher *fsnotify.Watcher

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	paused atomic.Bool

	queue   map[string]time.Time // filepath -> last event
	queueMu sync.Mutex

	mu      sync.Mutex
	running bool
	closed  bool
}

// NewInboxFeed creates a feed over dir. Call Start to begin watching.
func NewInboxFeed(dir string, config Config) (*InboxFeed, error) {
	if dir == "" {
		return nil, fmt.Errorf("inbox directory cannot be empty")
	}
	config.normalize()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &InboxFeed{
		dir:     dir,
		config:  config,
		watcher: watcher,
		events:  make(chan Event),
		done:    make(chan struct{}),
		queue:   make(map[string]time.Time),
	}, nil
}

// Start creates the directory if needed, queues files already present and
// begins watching for new ones.
func (f *InboxFeed) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.running {
		return fmt.Errorf("inbox feed already running")
	}

	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("failed to create inbox directory: %w", err)
	}
	if err := f.watcher.Add(f.dir); err != nil {
		return fmt.Errorf("failed to watch inbox directory %s: %w", f.dir, err)
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("failed to read inbox directory: %w", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && !isHidden(e.Name()) {
			f.queueFile(filepath.Join(f.dir, e.Name()))
		}
	}

	f.running = true
	f.wg.Add(2)
	go f.watchEvents()
	go f.processQueue()

	f.config.Logger.Printf("Watching inbox %s", f.dir)
	return nil
}

// Events implements Feed.
func (f *InboxFeed) Events() <-chan Event {
	return f.events
}

// Pause implements Feed.
func (f *InboxFeed) Pause() {
	f.paused.Store(true)
}

// Resume implements Feed.
func (f *InboxFeed) Resume() {
	f.paused.Store(false)
}

// Pending returns the number of queued files.
func (f *InboxFeed) Pending() int {
	f.queueMu.Lock()
	defer f.queueMu.Unlock()
	return len(f.queue)
}

// Close stops watching and closes the events channel. Queued files stay on
// disk for the next run.
func (f *InboxFeed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.running = false
	f.mu.Unlock()

	close(f.done)

	err := f.watcher.Close()
	f.wg.Wait()
	close(f.events)

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// watchEvents turns fsnotify events into queue entries.
func (f *InboxFeed) watchEvents() {
	defer f.wg.Done()

	for {
		select {
		case <-f.done:
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if isHidden(filepath.Base(event.Name)) {
				continue
			}
			f.queueFile(event.Name)

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueFile records path with the current time, restarting its debounce.
func (f *InboxFeed) queueFile(path string) {
	f.queueMu.Lock()
	defer f.queueMu.Unlock()

	f.queue[path] = time.Now()
}

// processQueue delivers settled files, one per tick.
func (f *InboxFeed) processQueue() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return

		case <-ticker.C:
			if f.paused.Load() {
				continue
			}
			path, ok := f.nextReady()
			if !ok {
				continue
			}
			if !f.deliver(path) {
				return
			}
		}
	}
}

// nextReady pops the oldest file that has been quiet long enough.
func (f *InboxFeed) nextReady() (string, bool) {
	f.queueMu.Lock()
	defer f.queueMu.Unlock()

	now := time.Now()
	var ready []string
	for path, at := range f.queue {
		if now.Sub(at) >= f.config.Debounce {
			ready = append(ready, path)
		}
	}
	if len(ready) == 0 {
		return "", false
	}

	sort.Slice(ready, func(i, j int) bool {
		ai, aj := f.queue[ready[i]], f.queue[ready[j]]
		if ai.Equal(aj) {
			return ready[i] < ready[j]
		}
		return ai.Before(aj)
	})

	path := ready[0]
	delete(f.queue, path)
	return path, true
}

// deliver reads path, sends its payload and removes the file. It returns
// false when the feed was closed mid-delivery.
func (f *InboxFeed) deliver(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		// Removed or replaced by a directory since it was queued.
		return true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		f.config.Logger.Printf("Error reading %s: %v", path, err)
		return true
	}

	raw := strings.TrimRight(string(data), "\r\n")
	ev, ok := f.config.decode(raw, info.ModTime())
	if !ok {
		f.config.Logger.Printf("Discarding %s", filepath.Base(path))
		f.remove(path)
		return true
	}

	f.paused.Store(true)
	select {
	case f.events <- ev:
	case <-f.done:
		f.paused.Store(false)
		return false
	}

	f.remove(path)
	return true
}

func (f *InboxFeed) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		f.config.Logger.Printf("Error removing %s: %v", path, err)
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
