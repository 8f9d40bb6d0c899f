package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

/* Loader manages hook configuration from hooks.yaml
 * Provides in-memory lookup for fast access; safe to reload while workers read
 */

// Config represents the structure of hooks.yaml
type Config struct {
	Hooks []HookConfig `yaml:"hooks"`
}

// HookConfig represents a single hook in the YAML file
type HookConfig struct {
	ID             string            `yaml:"id"`
	URL            string            `yaml:"url"`
	EventKinds     []string          `yaml:"event_kinds"`
	SigningSecret  string            `yaml:"signing_secret"`
	ExpectedStatus int               `yaml:"expected_status"`
	Headers        map[string]string `yaml:"headers"`
}

// Loader holds the loaded hooks
type Loader struct {
	mu    sync.RWMutex
	hooks map[string]Hook
	path  string
}

// NewLoader creates a new hook loader
func NewLoader(hooks ...Hook) *Loader {
	l := &Loader{hooks: make(map[string]Hook, len(hooks))}
	for _, h := range hooks {
		l.hooks[h.ID] = h
	}
	return l
}

// Load reads and parses the hooks file, replacing the current set.
// On any error the previously loaded hooks stay in place.
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading hooks file: %w", err)
	}
	// A truncated file mid-write must not unregister every hook
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("hooks file is empty: %s", filePath)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing hooks YAML: %w", err)
	}

	loaded := make(map[string]Hook, len(config.Hooks))
	for _, hc := range config.Hooks {
		hook := Hook{
			ID:             hc.ID,
			URL:            hc.URL,
			EventKinds:     hc.EventKinds,
			SigningSecret:  hc.SigningSecret,
			ExpectedStatus: hc.ExpectedStatus,
			Headers:        hc.Headers,
		}
		if err := hook.Validate(); err != nil {
			return fmt.Errorf("validating hook: %w", err)
		}
		if _, dup := loaded[hook.ID]; dup {
			return fmt.Errorf("duplicate hook id: %s", hook.ID)
		}
		loaded[hook.ID] = hook
	}

	l.mu.Lock()
	l.hooks = loaded
	l.path = filePath
	l.mu.Unlock()

	return nil
}

// Reload reads the last successfully loaded file again
func (l *Loader) Reload() error {
	l.mu.RLock()
	path := l.path
	l.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("no hooks file loaded yet")
	}
	return l.Load(path)
}

// Find resolves a hook by id. Unknown ids wrap ErrNotFound.
func (l *Loader) Find(ctx context.Context, id string) (Hook, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	hook, exists := l.hooks[id]
	if !exists {
		return Hook{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return hook, nil
}

// List returns all loaded hooks ordered by id
func (l *Loader) List() []Hook {
	l.mu.RLock()
	defer l.mu.RUnlock()

	hooks := make([]Hook, 0, len(l.hooks))
	for _, hook := range l.hooks {
		hooks = append(hooks, hook)
	}
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].ID < hooks[j].ID })
	return hooks
}

// Exists checks if a hook id is registered
func (l *Loader) Exists(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, exists := l.hooks[id]
	return exists
}
