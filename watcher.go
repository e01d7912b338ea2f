package mcpgateway

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ConfigChangeFunc receives a new, valid configuration and the names of the
// servers that were added, removed or modified.
type ConfigChangeFunc func(configText string, changed []string) error

// ConfigWatcher monitors a configuration file and reports valid changes.
type ConfigWatcher struct {
	path     string
	onChange ConfigChangeFunc
	logger   zerolog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	current *ServerConfig
}

// NewConfigWatcher creates a watcher for the config file at path. The file
// must exist and hold a valid configuration.
func NewConfigWatcher(path string, onChange ConfigChangeFunc, opts ...Option) (*ConfigWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("config change callback cannot be nil")
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to apply option: %w", err)
	}

	text, err := ReadConfigFile(path)
	if err != nil {
		return nil, err
	}
	config, err := ParseConfig(text)
	if err != nil {
		return nil, err
	}

	return &ConfigWatcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   o.logger.With().Str("config_path", path).Logger(),
		current:  config,
	}, nil
}

// Start begins watching. The parent directory is watched so that editors
// replacing the file atomically are noticed.
func (w *ConfigWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	w.wg.Add(1)
	go w.watchConfigFile(watcher, w.done)

	w.logger.Info().Msg("File watcher started")
	return nil
}

// Stop ends watching and waits for the watch goroutine to return.
func (w *ConfigWatcher) Stop() error {
	w.mu.Lock()
	watcher := w.watcher
	if watcher == nil {
		w.mu.Unlock()
		return nil
	}
	close(w.done)
	w.watcher = nil
	w.done = nil
	w.mu.Unlock()

	err := watcher.Close()
	w.wg.Wait()
	w.logger.Info().Msg("File watcher stopped")
	return err
}

// IsRunning reports whether the watcher is active.
func (w *ConfigWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watcher != nil
}

func (w *ConfigWatcher) watchConfigFile(watcher *fsnotify.Watcher, done chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug().Str("op", event.Op.String()).Msg("Configuration file changed")
			if err := w.handleConfigChange(); err != nil {
				w.logger.Warn().Err(err).Msg("Failed to handle config change")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("File watcher error")

		case <-done:
			return
		}
	}
}

// handleConfigChange reloads the file and reports it when servers changed.
func (w *ConfigWatcher) handleConfigChange() error {
	text, err := ReadConfigFile(w.path)
	if err != nil {
		return err
	}
	config, err := ParseConfig(text)
	if err != nil {
		return fmt.Errorf("ignoring invalid configuration: %w", err)
	}

	w.mu.Lock()
	changed := ChangedServers(w.current, config)
	w.current = config
	w.mu.Unlock()

	if len(changed) == 0 {
		return nil
	}
	w.logger.Info().Strs("servers", changed).Msg("Configuration reloaded")
	return w.onChange(text, changed)
}

// ChangedServers returns the servers added, removed or modified between two
// configurations: names from next in its order, then removed names.
func ChangedServers(prev, next *ServerConfig) []string {
	changed := []string{}
	if next != nil {
		for _, spec := range next.servers {
			if prev == nil {
				changed = append(changed, spec.Name)
				continue
			}
			old, ok := prev.Lookup(spec.Name)
			if !ok || serverSpecChanged(old, spec) {
				changed = append(changed, spec.Name)
			}
		}
	}
	if prev != nil {
		for _, spec := range prev.servers {
			if next == nil {
				changed = append(changed, spec.Name)
				continue
			}
			if _, ok := next.Lookup(spec.Name); !ok {
				changed = append(changed, spec.Name)
			}
		}
	}
	return changed
}

// serverSpecChanged checks if a server spec changed in a way that needs a restart.
func serverSpecChanged(old, next ServerSpec) bool {
	return old.Command != next.Command ||
		old.EnabledByDefault != next.EnabledByDefault ||
		old.Prefix() != next.Prefix() ||
		!slices.Equal(old.Args, next.Args) ||
		!maps.Equal(old.Env, next.Env) ||
		!slices.Equal(old.IncludeTools, next.IncludeTools) ||
		(old.IncludeTools == nil) != (next.IncludeTools == nil) ||
		!slices.Equal(old.ExcludeTools, next.ExcludeTools)
}
