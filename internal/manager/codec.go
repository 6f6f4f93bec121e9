package manager

import (
	"encoding/json"
	"fmt"

	"clipforge/internal/eventlog"
	"clipforge/internal/session"
)

// documentFromState flattens a session state into the per-field document
// shape the event log stores.
func documentFromState(state *session.State) (eventlog.Document, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode session state: %w", err)
	}
	var doc eventlog.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("flatten session state: %w", err)
	}
	return doc, nil
}

// stateFromDocument rebuilds a session state from a stored document.
// Unknown fields are dropped; missing fields keep zero values so older
// snapshots still load.
func stateFromDocument(doc eventlog.Document) (*session.State, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	state := &session.State{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	return state, nil
}
