package levels

import "sync"

// configKey identifies one (timeframe, factor) configuration.
type configKey struct {
	TF     string
	Factor string
}

// symbolState is the per-(config, symbol) memory carried between snapshot
// versions. All prev* fields hold values from the previous recomputation;
// the engine reads them first and commits the current row afterwards.
type symbolState struct {
	hasPrevLtp    bool
	prevLtp       float64
	hasPrevVolume bool
	prevVolume    float64
	prevVolDelta  float64

	be5TouchTs     int64 // unix seconds of the last ltp ≤ be5 touch, 0 = none
	be5MinLtp      float64
	be5TouchVolume float64
}

// StateStore retains signal state across snapshot versions. Not persisted.
type StateStore struct {
	mu sync.Mutex
	m  map[configKey]map[string]*symbolState
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{m: make(map[configKey]map[string]*symbolState)}
}

// get returns the state for (key, symbol), creating it if absent.
func (s *StateStore) get(key configKey, symbol string) *symbolState {
	bySym, ok := s.m[key]
	if !ok {
		bySym = make(map[string]*symbolState)
		s.m[key] = bySym
	}
	st, ok := bySym[symbol]
	if !ok {
		st = &symbolState{}
		bySym[symbol] = st
	}
	return st
}

// evictUnseen drops state for symbols under key that are not in seen.
// Called at the end of each recomputation run.
func (s *StateStore) evictUnseen(key configKey, seen map[string]bool) {
	bySym, ok := s.m[key]
	if !ok {
		return
	}
	for sym := range bySym {
		if !seen[sym] {
			delete(bySym, sym)
		}
	}
}

// Size returns the total number of retained symbol entries (for stats).
func (s *StateStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, bySym := range s.m {
		n += len(bySym)
	}
	return n
}
