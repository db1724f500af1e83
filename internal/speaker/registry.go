// Package speaker provides the process-wide SpeakerRegistry: a mapping
// from opaque speaker IDs (e.g. "Speaker_01") to display names and roles,
// loaded at task start and consulted read-only by the orchestrator.
package speaker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// UnidentifiedSpeaker is the stable placeholder for unknown speaker IDs.
const UnidentifiedSpeaker = "Unidentified speaker"

// Entry is one registry record.
type Entry struct {
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Registry is the process-wide mapping from speaker ID to Entry.
// It is safe for concurrent reads; reloads replace the map atomically.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// Load reads the registry file (JSON: speaker_id -> {display_name, role})
// at task start. The orchestrator only reads the returned Registry during
// a single task's execution; edits on disk are picked up only via Watch
// or the next task's Load, never mid-task.
func Load(path string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{entries: make(map[string]Entry), path: path, logger: logger}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) reload() error {
	data, err := os.ReadFile(r.path) // #nosec G304 - path is operator-configured
	if err != nil {
		return fmt.Errorf("speaker: read registry file: %w", err)
	}

	var parsed map[string]Entry
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("speaker: parse registry file: %w", err)
	}

	r.mu.Lock()
	r.entries = parsed
	r.mu.Unlock()
	return nil
}

// Resolve returns the display name and role for a speaker ID. Unknown IDs
// resolve to the stable UnidentifiedSpeaker placeholder with an empty role.
func (r *Registry) Resolve(speakerID string) (displayName, role string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[speakerID]
	if !ok {
		return UnidentifiedSpeaker, ""
	}
	return entry.DisplayName, entry.Role
}

// Watch starts an fsnotify watch on the registry file and reloads it on
// write events, so out-of-band edits are picked up between task starts
// without restarting the process. It is optional; callers that only need
// a load-once registry can skip calling it. Call Close to stop watching.
func (r *Registry) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("speaker: create watcher: %w", err)
	}
	if err := watcher.Add(r.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("speaker: watch registry file: %w", err)
	}
	r.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := r.reload(); err != nil {
					r.logger.Warn("speaker registry reload failed",
						slog.String("path", r.path),
						slog.String("error", err.Error()),
					)
					continue
				}
				r.logger.Info("speaker registry reloaded", slog.String("path", r.path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("speaker registry watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}

// Close stops the file watcher, if one was started.
func (r *Registry) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}
