package bundle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DeliveryWatcher watches the bundle delivery directory for new
// (bundle, signature) pairs dropped by the distribution channel and feeds
// them to the Store. The watcher never fetches bundles itself; it only
// reacts to what the channel delivers. Debouncing collapses the two writes
// of a pair into a single load attempt.
type DeliveryWatcher struct {
	store  *Store
	config *DeliveryWatcherConfig
	logger *slog.Logger
}

// DeliveryWatcherConfig contains configuration for the delivery watcher.
type DeliveryWatcherConfig struct {
	// Dir is the directory the distribution channel writes into.
	Dir string

	// BundleFile and SignatureFile are the expected file names inside Dir.
	BundleFile    string
	SignatureFile string

	// DebounceInterval is the quiet period after the last file event
	// before a load is attempted (default: 500ms).
	DebounceInterval time.Duration
}

// NewDeliveryWatcher creates a watcher over the given store.
func NewDeliveryWatcher(store *Store, config *DeliveryWatcherConfig) (*DeliveryWatcher, error) {
	if config == nil || config.Dir == "" {
		return nil, fmt.Errorf("delivery directory is required")
	}
	if config.BundleFile == "" {
		config.BundleFile = "bundle.yaml"
	}
	if config.SignatureFile == "" {
		config.SignatureFile = "bundle.sig"
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}
	return &DeliveryWatcher{
		store:  store,
		config: config,
		logger: slog.Default().With("component", "policy.delivery"),
	}, nil
}

// LoadOnce reads the current pair from the delivery directory and activates
// it. Called at startup so a pre-delivered bundle takes effect before any
// events are processed.
func (w *DeliveryWatcher) LoadOnce() (string, error) {
	payload, err := os.ReadFile(filepath.Join(w.config.Dir, w.config.BundleFile))
	if err != nil {
		return "", fmt.Errorf("failed to read bundle payload: %w", err)
	}
	sigData, err := os.ReadFile(filepath.Join(w.config.Dir, w.config.SignatureFile))
	if err != nil {
		return "", fmt.Errorf("failed to read bundle signature: %w", err)
	}
	sig, err := DecodeSignature(sigData)
	if err != nil {
		return "", err
	}
	return w.store.Load(payload, sig)
}

// Watch blocks, reloading the bundle whenever the delivery pair changes,
// until the context is cancelled. A failed load keeps the previous bundle
// active and is logged, not fatal: the distribution channel may redeliver.
func (w *DeliveryWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("failed to watch delivery directory %q: %w", w.config.Dir, err)
	}

	w.logger.Info("watching bundle delivery directory",
		"dir", w.config.Dir,
		"debounce_ms", w.config.DebounceInterval.Milliseconds(),
	)

	var debounce *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("delivery watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.isDeliveryFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("delivery file event", "path", event.Name, "op", event.Op.String())

			if debounce == nil {
				debounce = time.NewTimer(w.config.DebounceInterval)
				debounceCh = debounce.C
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(w.config.DebounceInterval)
			}

		case <-debounceCh:
			debounce = nil
			debounceCh = nil
			if version, err := w.LoadOnce(); err != nil {
				w.logger.Warn("bundle delivery rejected, previous bundle stays active", "error", err)
			} else {
				w.logger.Info("bundle delivery activated", "version", version)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

func (w *DeliveryWatcher) isDeliveryFile(path string) bool {
	base := filepath.Base(path)
	return base == w.config.BundleFile || base == w.config.SignatureFile
}
