package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/OpsCopilot/internal/models"
)

// encodeMessage serializes a message for the messages.payload column.
func encodeMessage(m models.Message) (string, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode message %s: %w", m.ID, err)
	}
	return string(payload), nil
}

// scanMessages decodes message rows selected as (payload).
func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		var m models.Message
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("failed to decode message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

// encodeStateData converts state data to JSON; empty data encodes as "".
func encodeStateData(data map[models.DataKey]string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeStateData parses stored state data, continuing with an empty map on corrupt rows.
func decodeStateData(raw, sessionID string) map[models.DataKey]string {
	data := make(map[models.DataKey]string)
	if raw == "" {
		return data
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		slog.Error("store: flow state data unmarshal failed", "error", err, "sessionID", sessionID)
		return make(map[models.DataKey]string)
	}
	return data
}

// scanFlowStates decodes flow state rows selected as
// (session_id, flow_type, current_state, state_data, created_at, updated_at).
func scanFlowStates(rows *sql.Rows) ([]models.FlowState, error) {
	var states []models.FlowState
	for rows.Next() {
		var (
			state         models.FlowState
			ft, current   string
			stateDataJSON sql.NullString
		)
		if err := rows.Scan(&state.SessionID, &ft, &current, &stateDataJSON, &state.CreatedAt, &state.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan flow state row: %w", err)
		}
		state.FlowType = models.FlowType(ft)
		state.CurrentState = models.StateType(current)
		state.StateData = decodeStateData(stateDataJSON.String, state.SessionID)
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flow state rows: %w", err)
	}
	return states, nil
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
