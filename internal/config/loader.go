package config

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${NAME} and ${NAME:-default} references in a raw
// config file, substituted before YAML parsing so secrets and
// environment-specific values never need to be hardcoded.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// substituteEnvVars replaces every ${NAME} or ${NAME:-default} reference
// in raw with the named environment variable's value, or the default (or
// empty string) when it is unset.
func substituteEnvVars(raw string) string {
	return envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[3]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return def
	})
}

// Loader reads, validates, and caches the agent's YAML config file. It is
// safe for concurrent use; Get returns the currently active snapshot and
// Reload atomically swaps it after re-reading from disk.
type Loader struct {
	mu       sync.RWMutex
	cfg      *Config
	filePath string
	watcher  *Watcher
}

// NewLoader creates a Loader pre-populated with DefaultConfig, so Get
// returns usable defaults even before Load is ever called.
func NewLoader() *Loader {
	return &Loader{cfg: DefaultConfig()}
}

// Load reads path, unmarshals it onto a fresh DefaultConfig (unknown keys
// are ignored, missing keys keep their default), validates the result,
// and swaps it in atomically.
func (l *Loader) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	expanded := substituteEnvVars(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: validate %s: %w", path, err)
	}

	l.mu.Lock()
	l.cfg = cfg
	l.filePath = path
	l.mu.Unlock()
	return nil
}

// Reload re-reads the previously loaded file. It is a no-op error if Load
// was never called.
func (l *Loader) Reload() error {
	l.mu.RLock()
	path := l.filePath
	l.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("config: Reload called before Load")
	}
	return l.Load(path)
}

// Get returns the currently active config snapshot.
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// FilePath returns the path last passed to Load, or "" if Load has never
// succeeded.
func (l *Loader) FilePath() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filePath
}

// SetWatcher associates a filesystem Watcher with this Loader. Called by
// NewWatcher automatically.
func (l *Loader) SetWatcher(w *Watcher) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watcher = w
}
