package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DynamicConfig represents runtime-changeable configuration loaded from a
// YAML file.
type DynamicConfig struct {
	Limits    Limits          `yaml:"limits"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Metadata  ConfigMetadata  `yaml:"metadata"`
}

// Limits holds application limits
type Limits struct {
	MaxMemoriesPerUser int `yaml:"maxMemoriesPerUser"`
	MaxTagsPerMemory   int `yaml:"maxTagsPerMemory"`
}

// WebSocketConfig holds websocket tuning
type WebSocketConfig struct {
	MaxConnectionsPerUser int `yaml:"maxConnectionsPerUser"`
	PushBufferSize        int `yaml:"pushBufferSize"`
}

// ConfigMetadata identifies the config revision
type ConfigMetadata struct {
	Version   string    `yaml:"version"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}

// DefaultDynamicConfig returns the settings used when no file is configured.
func DefaultDynamicConfig() *DynamicConfig {
	return &DynamicConfig{
		Limits: Limits{
			MaxMemoriesPerUser: 1000,
			MaxTagsPerMemory:   20,
		},
		WebSocket: WebSocketConfig{
			MaxConnectionsPerUser: 5,
			PushBufferSize:        8,
		},
	}
}

// Watcher serves the current dynamic configuration and reloads it when the
// backing file changes.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	current  *DynamicConfig
	onChange []func(*DynamicConfig)
}

// NewWatcher loads the file and starts watching it. An empty path yields a
// watcher that only ever serves the defaults.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	w := &Watcher{
		path:    path,
		logger:  logger,
		stopCh:  make(chan struct{}),
		current: DefaultDynamicConfig(),
	}
	if path == "" {
		return w, nil
	}

	cfg, err := loadDynamicConfig(path)
	if err != nil {
		return nil, err
	}
	w.current = cfg

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	w.watcher = fsw

	go w.run()
	return w, nil
}

// Current returns the active configuration snapshot.
func (w *Watcher) Current() *DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// MaxMemoriesPerUser satisfies the store's Limits dependency.
func (w *Watcher) MaxMemoriesPerUser() int {
	return w.Current().Limits.MaxMemoriesPerUser
}

// OnChange registers a callback invoked after each successful reload.
func (w *Watcher) OnChange(fn func(*DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Stop ends the watch loop. Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := loadDynamicConfig(w.path)
	if err != nil {
		// Keep serving the previous good configuration.
		w.logger.Warn("failed to reload dynamic config", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := make([]func(*DynamicConfig), len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()

	w.logger.Info("dynamic config reloaded",
		zap.String("version", cfg.Metadata.Version),
	)
	for _, fn := range callbacks {
		fn(cfg)
	}
}

func loadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dynamic config: %w", err)
	}
	cfg := DefaultDynamicConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse dynamic config: %w", err)
	}
	return cfg, nil
}
