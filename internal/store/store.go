// Package store provides storage backends for OpsCopilot.
//
// It archives conversation transcripts, persists scripted flow state and
// keeps process-wide preferences. An in-memory store is the default; SQLite
// and PostgreSQL back persistent deployments.
package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/BTreeMap/OpsCopilot/internal/models"
)

// FlowStateStore persists the current state of scripted flows.
type FlowStateStore interface {
	SaveFlowState(state models.FlowState) error
	GetFlowState(sessionID, flowType string) (*models.FlowState, error)
	DeleteFlowState(sessionID, flowType string) error
	ListFlowStates() ([]models.FlowState, error)
}

// PreferenceStore is a small key/value table for process configuration.
type PreferenceStore interface {
	GetPreference(key string) (string, bool, error)
	SetPreference(key, value string) error
}

// Store is the full storage backend used by the service.
type Store interface {
	FlowStateStore
	PreferenceStore
	AppendMessage(sessionID string, m models.Message) error
	ListMessages(sessionID string) ([]models.Message, error)
	Close() error
}

// Opts holds configuration for store backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL URLs or keyword DSNs and "sqlite" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// New opens the backend matching the DSN, or an in-memory store when no DSN is configured.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Debug("store.New: no DSN, using in-memory store")
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(WithPostgresDSN(cfg.DSN))
	}
	return NewSQLiteStore(WithSQLiteDSN(cfg.DSN))
}

// InMemoryStore is a simple in-memory store.
type InMemoryStore struct {
	mu          sync.RWMutex
	messages    map[string][]models.Message
	flowStates  map[string]models.FlowState
	preferences map[string]string
}

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		messages:    make(map[string][]models.Message),
		flowStates:  make(map[string]models.FlowState),
		preferences: make(map[string]string),
	}
}

func (s *InMemoryStore) AppendMessage(sessionID string, m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sessionID] = append(s.messages[sessionID], m)
	return nil
}

func (s *InMemoryStore) ListMessages(sessionID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages[sessionID]))
	copy(out, s.messages[sessionID])
	return out, nil
}

func flowStateKey(sessionID, flowType string) string {
	return sessionID + "/" + flowType
}

func (s *InMemoryStore) SaveFlowState(state models.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make(map[models.DataKey]string, len(state.StateData))
	for k, v := range state.StateData {
		data[k] = v
	}
	state.StateData = data
	s.flowStates[flowStateKey(state.SessionID, string(state.FlowType))] = state
	return nil
}

// GetFlowState returns nil, nil when no state is stored.
func (s *InMemoryStore) GetFlowState(sessionID, flowType string) (*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.flowStates[flowStateKey(sessionID, flowType)]
	if !ok {
		return nil, nil
	}
	data := make(map[models.DataKey]string, len(state.StateData))
	for k, v := range state.StateData {
		data[k] = v
	}
	state.StateData = data
	return &state, nil
}

func (s *InMemoryStore) DeleteFlowState(sessionID, flowType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flowStates, flowStateKey(sessionID, flowType))
	return nil
}

// ListFlowStates returns every stored flow state ordered by session and flow type.
func (s *InMemoryStore) ListFlowStates() ([]models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FlowState, 0, len(s.flowStates))
	for _, st := range s.flowStates {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionID != out[j].SessionID {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].FlowType < out[j].FlowType
	})
	return out, nil
}

func (s *InMemoryStore) GetPreference(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.preferences[key]
	return v, ok, nil
}

func (s *InMemoryStore) SetPreference(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[key] = value
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
