package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"mcpstudio/pkg/logging"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// DefaultReloadDebounce is how long the file store waits after the last
// change before reloading.
const DefaultReloadDebounce = 200 * time.Millisecond

// fileContents is the layout of the file store:
//
//	users:
//	  "42":
//	    - name: notes
//	      type: stdio
//	      enabled: true
//	      config:
//	        command: mcp-notes
type fileContents struct {
	Users map[string][]ServerRow `yaml:"users"`
}

// FileStore reads user servers from a YAML file and reloads it when it
// changes. It is meant for local development.
type FileStore struct {
	path     string
	debounce time.Duration

	mu    sync.RWMutex
	users map[string][]ServerRow

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	stopCh  chan struct{}
	onLoad  func()
}

// NewFileStore loads path. A missing file yields an empty store.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:     path,
		debounce: DefaultReloadDebounce,
		users:    make(map[string][]ServerRow),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

// Reload reads the file again. On error the previous contents are kept.
func (s *FileStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Debug("Store", "User server file %s does not exist, store is empty", s.path)
			s.replace(nil)
			return nil
		}
		return fmt.Errorf("failed to read user server file %s: %w", s.path, err)
	}

	var contents fileContents
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return fmt.Errorf("failed to parse user server file %s: %w", s.path, err)
	}

	s.replace(contents.Users)
	logging.Debug("Store", "Loaded user servers of %d users from %s", len(contents.Users), s.path)
	return nil
}

func (s *FileStore) replace(users map[string][]ServerRow) {
	if users == nil {
		users = make(map[string][]ServerRow)
	}
	s.mu.Lock()
	s.users = users
	s.mu.Unlock()

	s.watchMu.Lock()
	onLoad := s.onLoad
	s.watchMu.Unlock()
	if onLoad != nil {
		onLoad()
	}
}

// ListEnabledServers returns the enabled servers of userID, ordered by name.
func (s *FileStore) ListEnabledServers(ctx context.Context, userID string) ([]ServerRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []ServerRow
	for _, row := range s.users[userID] {
		if row.Enabled {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows, nil
}

// Watch reloads the file whenever it changes until ctx ends or Stop is
// called. onLoad, if not nil, runs after every successful load.
//
// The directory is watched rather than the file so that editors replacing
// the file atomically are noticed.
func (s *FileStore) Watch(ctx context.Context, onLoad func()) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	s.watcher = watcher
	s.stopCh = make(chan struct{})
	s.onLoad = onLoad

	go s.processEvents(ctx, watcher, s.stopCh)

	logging.Info("Store", "Watching %s for changes", s.path)
	return nil
}

func (s *FileStore) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh chan struct{}) {
	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			_ = s.Stop()
			return

		case <-stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Store", err, "User server file watcher error")
		}
	}
}

// scheduleReload debounces bursts of events into one reload.
func (s *FileStore) scheduleReload() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.Reload(); err != nil {
			logging.Warn("Store", "Keeping previous user servers: %v", err)
		}
	})
}

// Stop ends watching. It is safe to call more than once.
func (s *FileStore) Stop() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.watcher == nil {
		return nil
	}
	close(s.stopCh)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	return err
}
