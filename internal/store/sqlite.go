// Package store provides storage backends for OpsCopilot.
//
// This file implements an SQLite-backed store for transcripts, flow state and preferences.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/OpsCopilot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

// AppendMessage archives a message at the end of a session transcript.
func (s *SQLiteStore) AppendMessage(sessionID string, m models.Message) error {
	payload, err := encodeMessage(m)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO messages (id, session_id, role, kind, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, sessionID, string(m.Role), string(m.Content.Kind()), payload, m.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AppendMessage failed", "error", err, "sessionID", sessionID, "messageID", m.ID)
		return fmt.Errorf("failed to insert message %s: %w", m.ID, err)
	}
	slog.Debug("SQLiteStore AppendMessage succeeded", "sessionID", sessionID, "messageID", m.ID, "kind", m.Content.Kind())
	return nil
}

// ListMessages returns a session transcript in append order.
func (s *SQLiteStore) ListMessages(sessionID string) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT payload FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore ListMessages query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		slog.Error("SQLiteStore ListMessages scan failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	slog.Debug("SQLiteStore ListMessages succeeded", "sessionID", sessionID, "count", len(messages))
	return messages, nil
}

// SaveFlowState stores or updates flow state for a session.
func (s *SQLiteStore) SaveFlowState(state models.FlowState) error {
	query := `
		INSERT OR REPLACE INTO flow_states (session_id, flow_type, current_state, state_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	stateDataJSON, err := encodeStateData(state.StateData)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowState JSON marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}

	_, err = s.db.Exec(query, state.SessionID, string(state.FlowType), string(state.CurrentState),
		stateDataJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowState failed", "error", err, "sessionID", state.SessionID, "flowType", state.FlowType)
		return err
	}
	slog.Debug("SQLiteStore SaveFlowState succeeded", "sessionID", state.SessionID, "flowType", state.FlowType, "state", state.CurrentState)
	return nil
}

// GetFlowState retrieves flow state for a session; nil, nil when absent.
func (s *SQLiteStore) GetFlowState(sessionID, flowType string) (*models.FlowState, error) {
	query := `SELECT session_id, flow_type, current_state, COALESCE(state_data, ''), created_at, updated_at
			  FROM flow_states WHERE session_id = ? AND flow_type = ?`

	var (
		state         models.FlowState
		ft, current   string
		stateDataJSON string
	)
	err := s.db.QueryRow(query, sessionID, flowType).Scan(
		&state.SessionID, &ft, &current, &stateDataJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFlowState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return nil, err
	}
	state.FlowType = models.FlowType(ft)
	state.CurrentState = models.StateType(current)
	state.StateData = decodeStateData(stateDataJSON, sessionID)
	return &state, nil
}

// DeleteFlowState removes flow state for a session.
func (s *SQLiteStore) DeleteFlowState(sessionID, flowType string) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE session_id = ? AND flow_type = ?`, sessionID, flowType)
	if err != nil {
		slog.Error("SQLiteStore DeleteFlowState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	slog.Debug("SQLiteStore DeleteFlowState succeeded", "sessionID", sessionID, "flowType", flowType)
	return nil
}

// ListFlowStates returns every stored flow state ordered by session and flow type.
func (s *SQLiteStore) ListFlowStates() ([]models.FlowState, error) {
	rows, err := s.db.Query(`SELECT session_id, flow_type, current_state, state_data, created_at, updated_at
			  FROM flow_states ORDER BY session_id, flow_type`)
	if err != nil {
		slog.Error("SQLiteStore ListFlowStates query failed", "error", err)
		return nil, fmt.Errorf("failed to query flow states: %w", err)
	}
	defer rows.Close()
	return scanFlowStates(rows)
}

// GetPreference reads a preference; ok is false when the key was never set.
func (s *SQLiteStore) GetPreference(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetPreference failed", "error", err, "key", key)
		return "", false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return value, true, nil
}

// SetPreference writes a preference.
func (s *SQLiteStore) SetPreference(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO preferences (key, value, updated_at) VALUES (?, ?, ?)`, key, value, time.Now())
	if err != nil {
		slog.Error("SQLiteStore SetPreference failed", "error", err, "key", key)
		return fmt.Errorf("failed to write preference %s: %w", key, err)
	}
	slog.Debug("SQLiteStore SetPreference succeeded", "key", key, "value", value)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
