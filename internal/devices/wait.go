package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrDeviceNotFound is returned when a device node did not appear in time.
var ErrDeviceNotFound = errors.New("device node not found")

// WaitForDevice blocks until path exists, the timeout elapses or ctx is done.
// A timeout of zero only checks once.
func WaitForDevice(ctx context.Context, path string, timeout time.Duration, logger *slog.Logger) error {
	if exists(path) {
		return nil
	}
	if timeout <= 0 {
		return fmt.Errorf("%s: %w", path, ErrDeviceNotFound)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if addErr := watcher.Add(dir); addErr != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, addErr)
	}

	// The node may have appeared between the first check and Add.
	if exists(path) {
		return nil
	}

	logger.Info("Waiting for device", "path", path, "timeout", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			return fmt.Errorf("%s after %v: %w", path, timeout, ErrDeviceNotFound)

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("%s: watcher closed: %w", path, ErrDeviceNotFound)
			}
			if event.Op&fsnotify.Create == 0 || filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if exists(path) {
				logger.Info("Device appeared", "path", path)
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("%s: watcher closed: %w", path, ErrDeviceNotFound)
			}
			logger.Warn("Device watcher error", "error", err)
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
