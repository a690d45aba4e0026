package store

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
)

const tuiStateFileName = "tui_state.json"

// TUIState stores small, user-facing UI state for restoring the editor on relaunch.
//
// It is intentionally "best effort": callers should tolerate missing/invalid data.
type TUIState struct {
	Version int `json:"version"`

	// Server is the address the state was saved for; the selection is dropped when it
	// differs from the one being connected to.
	Server string `json:"server,omitempty"`

	// Selection holds [row, col] of the selection start and end.
	SelectionStart [2]int `json:"selectionStart"`
	SelectionEnd   [2]int `json:"selectionEnd"`

	ShowLogs  bool `json:"showLogs,omitempty"`
	ShowPeers bool `json:"showPeers,omitempty"`
}

func (s Store) LoadTUIState() (*TUIState, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return &TUIState{Version: 1}, nil
	}
	b, err := os.ReadFile(s.path(tuiStateFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &TUIState{Version: 1}, nil
		}
		return nil, err
	}
	var st TUIState
	if err := json.Unmarshal(b, &st); err != nil {
		// Best-effort; if corrupted, treat as missing.
		return &TUIState{Version: 1}, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	return &st, nil
}

func (s Store) SaveTUIState(st *TUIState) error {
	if st == nil {
		return nil
	}
	if strings.TrimSpace(s.Dir) == "" {
		return nil
	}
	if err := s.Ensure(); err != nil {
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(s.Dir, "tui_state.json.*.tmp", s.path(tuiStateFileName), b, 0o644)
}
