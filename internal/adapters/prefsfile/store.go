// Package prefsfile stores preferences in a YAML file and watches it for edits.
package prefsfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/example/autohttps/internal/logging"
	"github.com/example/autohttps/internal/ports/secondary"
)

// debounceWindow collapses the burst of events an editor produces on save.
const debounceWindow = 50 * time.Millisecond

// document is the on-disk layout.
type document struct {
	SuppressedDomains []string `yaml:"suppressed_domains"`
	LoggingEnabled    bool     `yaml:"logging_enabled"`
}

// Store implements secondary.PreferenceStore and secondary.PreferenceWriter
// over a YAML file.
type Store struct {
	path   string
	logger *logging.Logger

	writeMu sync.Mutex
}

// NewStore creates a store for the file at path. The file need not exist.
func NewStore(path string, logger *logging.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the file. A missing file yields defaults.
func (s *Store) Load(ctx context.Context) (*secondary.PreferenceRecord, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.record(), nil
}

// Set stores value under key, rewriting the file atomically.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}

	switch key {
	case secondary.PrefSuppressedDomains:
		doc.SuppressedDomains = strings.Fields(value)
	case secondary.PrefLoggingEnabled:
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
		}
		doc.LoggingEnabled = enabled
	default:
		return fmt.Errorf("unknown preference %q", key)
	}

	return s.write(doc)
}

// Watch reports changes made to the file by any writer. The parent directory
// is watched so that editors replacing the file by rename are seen.
func (s *Store) Watch(ctx context.Context, fn func(secondary.PreferenceChange)) (secondary.Subscription, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create preferences directory: %w", err)
	}

	// An unreadable file counts as defaults so a later valid edit is reported.
	last, err := s.Load(ctx)
	if err != nil {
		s.logger.Warn("preference file unreadable, watching for a valid edit",
			zap.String("path", s.path), zap.Error(err))
		last = &secondary.PreferenceRecord{}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &watch{
		store:   s,
		watcher: watcher,
		fn:      fn,
		last:    last,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go w.run(ctx)

	return secondary.SubscriptionFunc(w.stop), nil
}

func (s *Store) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	doc := &document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *Store) write(doc *document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".prefs-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}

func (d *document) record() *secondary.PreferenceRecord {
	return &secondary.PreferenceRecord{
		SuppressedDomains: strings.Join(d.SuppressedDomains, " "),
		LoggingEnabled:    d.LoggingEnabled,
	}
}

// watch is one running subscription.
type watch struct {
	store   *Store
	watcher *fsnotify.Watcher
	fn      func(secondary.PreferenceChange)
	last    *secondary.PreferenceRecord

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func (w *watch) run(ctx context.Context) {
	defer close(w.doneCh)
	defer w.watcher.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.store.path) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(debounceWindow)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.store.logger.Warn("preference file watcher error", zap.Error(err))

		case <-pending:
			pending = nil
			w.reload(ctx)
		}
	}
}

func (w *watch) reload(ctx context.Context) {
	current, err := w.store.Load(ctx)
	if err != nil {
		// A half-written file; the next event retries.
		w.store.logger.Warn("failed to reload preferences", zap.String("path", w.store.path), zap.Error(err))
		return
	}
	for _, change := range secondary.DiffPreferences(w.last, current) {
		w.fn(change)
	}
	w.last = current
}

func (w *watch) stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

// Ensure Store implements the interfaces
var (
	_ secondary.PreferenceStore  = (*Store)(nil)
	_ secondary.PreferenceWriter = (*Store)(nil)
)
