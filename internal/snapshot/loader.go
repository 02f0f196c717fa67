package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"b5factor/internal/logger"
)

// Loader serves the current snapshot, re-reading the file only when its mtime
// changes. The producer writes the file atomically, so a plain stat+read is
// safe without writer coordination.
type Loader struct {
	path string

	mu      sync.RWMutex
	current *Snapshot
}

// NewLoader creates a loader for the given snapshot file path.
func NewLoader(path string) *Loader {
	return &Loader{path: path, current: Empty()}
}

// Load returns the current snapshot, reloading from disk if the file changed.
// A missing or malformed file yields the empty snapshot; errors never propagate.
func (l *Loader) Load() *Snapshot {
	st, err := os.Stat(l.path)
	if err != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.current.Version != 0 {
			logger.Warn("Snapshot", fmt.Sprintf("%s unreadable, serving empty snapshot: %v", l.path, err))
		}
		l.current = Empty()
		return l.current
	}

	version := st.ModTime().UnixNano()

	l.mu.RLock()
	if l.current.Version == version {
		snap := l.current
		l.mu.RUnlock()
		return snap
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current.Version == version {
		return l.current
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		l.current = Empty()
		return l.current
	}
	snap := Empty()
	if err := json.Unmarshal(data, snap); err != nil {
		logger.Warn("Snapshot", fmt.Sprintf("malformed snapshot file: %v", err))
		l.current = Empty()
		return l.current
	}
	snap.Version = version
	if snap.Rows == nil {
		snap.Rows = []Row{}
	}
	l.current = snap
	return snap
}

// Version stats the file and returns its current version without parsing.
// Returns 0 when the file is missing.
func (l *Loader) Version() int64 {
	st, err := os.Stat(l.path)
	if err != nil {
		return 0
	}
	return st.ModTime().UnixNano()
}

// Path returns the snapshot file path (the dashboard reports its size/mtime).
func (l *Loader) Path() string { return l.path }
