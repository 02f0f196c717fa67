package levels

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"b5factor/internal/snapshot"
)

// Service is the coordinator over the snapshot loader, the signal-state store
// and the derived cache. A snapshot-version change purges the whole cache
// before any dependent computation runs; reads within one version are memoized
// per (version, tf, factor) and coalesced with singleflight.
type Service struct {
	loader *snapshot.Loader
	states *StateStore
	opts   Options

	mu      sync.RWMutex
	version int64
	entries map[configKey]*Result

	group singleflight.Group

	// now is swappable for tests; defaults to time.Now().Unix.
	now func() int64
}

// NewService creates the coordinator.
func NewService(loader *snapshot.Loader, opts Options) *Service {
	return &Service{
		loader:  loader,
		states:  NewStateStore(),
		opts:    opts,
		entries: make(map[configKey]*Result),
		now:     func() int64 { return time.Now().Unix() },
	}
}

// States exposes the signal-state store (dashboard stats report its size).
func (s *Service) States() *StateStore { return s.states }

// Snapshot returns the current snapshot (reloading on mtime change).
func (s *Service) Snapshot() *snapshot.Snapshot { return s.loader.Load() }

// Rows returns the derived result for (tf, factor) against the current
// snapshot, computing it at most once per snapshot version.
func (s *Service) Rows(tf, factor string) (*Result, *snapshot.Snapshot) {
	snap := s.loader.Load()
	key := configKey{TF: tf, Factor: factor}

	s.mu.RLock()
	if s.version == snap.Version {
		if res, ok := s.entries[key]; ok {
			s.mu.RUnlock()
			return res, snap
		}
	}
	s.mu.RUnlock()

	sfKey := fmt.Sprintf("%d:%s:%s", snap.Version, tf, factor)
	v, _, _ := s.group.Do(sfKey, func() (interface{}, error) {
		// Purge everything the moment the version moves, before inserting.
		s.mu.Lock()
		if s.version != snap.Version {
			s.entries = make(map[configKey]*Result)
			s.version = snap.Version
		} else if res, ok := s.entries[key]; ok {
			s.mu.Unlock()
			return res, nil
		}
		s.mu.Unlock()

		res := Compute(snap.Rows, tf, factor, s.states, s.opts, s.now())

		s.mu.Lock()
		if s.version == snap.Version {
			s.entries[key] = res
		}
		s.mu.Unlock()
		return res, nil
	})
	return v.(*Result), snap
}
