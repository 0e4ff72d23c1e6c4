// Package file stores each key as one file in a directory, the on-disk
// equivalent of browser localStorage. Writes are atomic (temp file + rename)
// and another process editing the directory can be observed with Watch.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tankkwon/delivery-app/internal/log"
	"github.com/tankkwon/delivery-app/internal/storage"
)

const fileExt = ".json"

// debounce is how long a key must stay quiet before Watch reports it.
const debounce = 250 * time.Millisecond

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Store struct {
	dir    string
	logger *log.Logger

	mu sync.Mutex
	// lastSeen holds the content this process last wrote or reported per key,
	// so Watch can skip events caused by our own writes.
	lastSeen map[string]string
}

// New opens (and creates if needed) a store rooted at dir. A nil logger
// falls back to the default one.
func New(dir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Store{
		dir:      dir,
		logger:   logger.WithComponent(log.ComponentStorage),
		lastSeen: make(map[string]string),
	}, nil
}

func (s *Store) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+fileExt), nil
}

// Get implements storage.KV
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return "", false, err
	}
	b, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(b), true, nil
}

// Set implements storage.KV
func (s *Store) Set(_ context.Context, key, value string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	s.lastSeen[key] = value
	return nil
}

// Watch implements storage.Watcher. Events are debounced per key and
// writes made through this Store are not reported.
func (s *Store) Watch(ctx context.Context, onChange func(key string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	s.logger.InfoContext(ctx, "Watching data directory", "dir", s.dir)

	pending := map[string]time.Time{}
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if key, ok := keyFromPath(ev.Name); ok {
				pending[key] = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.WarnContext(ctx, "Data directory watch error", "dir", s.dir, log.FieldError, err)
		case now := <-ticker.C:
			for key, at := range pending {
				if now.Sub(at) < debounce {
					continue
				}
				delete(pending, key)
				if s.changedExternally(ctx, key) {
					onChange(key)
				}
			}
		}
	}
}

// changedExternally reports whether the file differs from what this process
// last wrote or reported, and remembers the new content.
func (s *Store) changedExternally(ctx context.Context, key string) bool {
	value, _, err := s.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read changed key",
			log.FieldKey, key,
			log.FieldErrorType, log.ErrorTypeStorage,
			log.FieldError, err)
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.lastSeen[key]; ok && prev == value {
		return false
	}
	s.lastSeen[key] = value
	return true
}

func keyFromPath(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, fileExt) {
		return "", false
	}
	key := strings.TrimSuffix(base, fileExt)
	return key, keyPattern.MatchString(key)
}
