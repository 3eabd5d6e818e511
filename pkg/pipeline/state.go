package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Store is the single writer around a design State. All mutation goes
// through Dispatch; readers take deep-copied snapshots.
type Store struct {
	mu      sync.RWMutex
	state   State
	reducer Reducer
	logger  *slog.Logger
	metrics *Metrics
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for dispatch events.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// WithState seeds the store with an initial state instead of the empty one.
func WithState(st State) StoreOption {
	return func(s *Store) { s.state = normalizeState(st.Clone()) }
}

// NewStore creates a Store holding the empty state.
func NewStore(r Reducer, opts ...StoreOption) *Store {
	s := &Store{state: NewState(), reducer: r, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dispatch applies a to the current state. On error the state and its
// history are left exactly as they were.
func (s *Store) Dispatch(a Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.reducer.Apply(s.state, a)
	s.metrics.observe(a, next, err)
	if err != nil {
		s.logger.Warn("action rejected", "action", kindName(a), "error", err)
		return err
	}
	s.state = next
	s.logger.Debug("action applied", "action", kindName(a),
		"assets", len(next.Assets), "stages", len(next.Stages), "edges", len(next.Edges))
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// SaveCheckpoint persists the current state to path as a state document.
func (s *Store) SaveCheckpoint(path string) error {
	data, err := Serialize(s.Snapshot())
	if err != nil {
		return fmt.Errorf("checkpoint marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("checkpoint write: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a state document from path and installs it through
// a RestoreState action.
func (s *Store) LoadCheckpoint(path string) error {
	st, err := ReadStateFile(path)
	if err != nil {
		return err
	}
	return s.Dispatch(RestoreState{State: st})
}

// ReadStateFile reads and decodes a state document. Read failures are
// reported as FileInputError, malformed documents as ParsingError.
func ReadStateFile(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, wrapError(KindFileInput, path, err)
	}
	return Deserialize(data)
}

func kindName(a Action) string {
	if a == nil {
		return "<nil>"
	}
	return string(a.Kind())
}
