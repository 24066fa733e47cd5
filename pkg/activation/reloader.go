package activation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"vurakit/agentveil/pkg/config"
	"vurakit/agentveil/pkg/security/secrets"
)

// Reloader re-activates a State whenever its configuration file changes.
type Reloader struct {
	mu      sync.Mutex
	state   *State
	path    string
	logger  *slog.Logger
	watcher *config.Watcher

	// OnReload, if set, is called after each successful activation.
	OnReload func(Config)
}

// NewReloader creates a reloader for the config file at path.
func NewReloader(state *State, path string, logger *slog.Logger) (*Reloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := config.NewWatcher(path, config.DefaultDebounceInterval, logger)
	if err != nil {
		return nil, err
	}
	return &Reloader{state: state, path: w.Path(), logger: logger, watcher: w}, nil
}

// Run activates from the file once, then blocks re-activating after each
// change until ctx is cancelled or Stop is called. A file that fails to
// load or validate leaves the previous activation in place.
//
// Reloads after the first fire on the watcher's debounce timer goroutine.
// Reloads never overlap each other, but the State must not be read
// concurrently without external locking.
func (r *Reloader) Run(ctx context.Context) error {
	if err := r.Reload(); err != nil {
		return err
	}
	return r.watcher.Watch(ctx, r.Reload)
}

// Reload loads the file and activates the state from it. Secret
// references are resolved again, so rotated secret files take effect.
// Concurrent calls run one at a time.
func (r *Reloader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := config.LoadConfigWithEnvOverrides(r.path)
	if err != nil {
		return fmt.Errorf("reload %s: %w", r.path, err)
	}
	if err := secrets.ResolveProxy(context.Background(), cfg, r.logger); err != nil {
		return fmt.Errorf("reload %s: %w", r.path, err)
	}

	opts := OptionsFromConfig(cfg)
	if prev, ok := r.state.Config(); ok && opts.SessionID == "" {
		opts.SessionID = prev.Session.SessionID
	}

	active, err := r.state.Activate(opts)
	if err != nil {
		return fmt.Errorf("reload %s: %w", r.path, err)
	}

	r.logger.Info("activation reloaded",
		"path", r.path,
		"proxy_url", active.ProxyURL,
		"role", active.Session.Role.String(),
		"session_id", active.Session.SessionID,
	)
	if r.OnReload != nil {
		r.OnReload(active)
	}
	return nil
}

// Stop stops a running reloader.
func (r *Reloader) Stop() error {
	return r.watcher.Stop()
}
