package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"sova-cli/internal/model"
)

// ServerMessage is anything the server pushes to the client.
type ServerMessage interface {
	ServerVariant() string
}

type Hello struct {
	Username           string       `json:"username"`
	Scene              *model.Scene `json:"scene"`
	Peers              []string     `json:"peers"`
	IsPlaying          bool         `json:"is_playing"`
	AvailableCompilers []string     `json:"available_compilers"`
}

func (Hello) ServerVariant() string { return "Hello" }

type SceneValue struct{ Scene *model.Scene }

func (SceneValue) ServerVariant() string { return "SceneValue" }

type Snapshot struct {
	Scene   *model.Scene `json:"scene"`
	Tempo   float64      `json:"tempo"`
	Beat    float64      `json:"beat"`
	Micros  uint64       `json:"micros"`
	Quantum float64      `json:"quantum"`
}

func (Snapshot) ServerVariant() string { return "Snapshot" }

// FrameRemoved confirms the server removed frame Frame of line Line.
type FrameRemoved struct{ Line, Frame int }

func (FrameRemoved) ServerVariant() string { return "FrameRemoved" }

// LineRemoved confirms the server removed line Line.
type LineRemoved struct{ Line int }

func (LineRemoved) ServerVariant() string { return "LineRemoved" }

// FrameInserted confirms the server inserted a frame before position Frame of line Line.
type FrameInserted struct{ Line, Frame int }

func (FrameInserted) ServerVariant() string { return "FrameInserted" }

// LineInserted confirms the server inserted a line at index Line.
type LineInserted struct{ Line int }

func (LineInserted) ServerVariant() string { return "LineInserted" }

type ClockState struct {
	Tempo   float64
	Beat    float64
	Micros  uint64
	Quantum float64
}

func (ClockState) ServerVariant() string { return "ClockState" }

// FramePosition reports, per line, the playing frame, its repetition and the iteration.
type FramePosition struct{ Positions [][3]int }

func (FramePosition) ServerVariant() string { return "FramePosition" }

type InternalError struct{ Message string }

func (InternalError) ServerVariant() string { return "InternalError" }

type LogString struct{ Message string }

func (LogString) ServerVariant() string { return "LogString" }

type ChatReceived struct{ Text string }

func (ChatReceived) ServerVariant() string { return "Chat" }

type ConnectionRefused struct{ Reason string }

func (ConnectionRefused) ServerVariant() string { return "ConnectionRefused" }

type PeersUpdated struct{ Peers []string }

func (PeersUpdated) ServerVariant() string { return "PeersUpdated" }

type PeerGridSelectionUpdate struct {
	Peer      string
	Selection GridSelection
}

func (PeerGridSelectionUpdate) ServerVariant() string { return "PeerGridSelectionUpdate" }

type PeerStartedEditing struct {
	Peer  string
	Line  int
	Frame int
}

func (PeerStartedEditing) ServerVariant() string { return "PeerStartedEditing" }

type PeerStoppedEditing struct {
	Peer  string
	Line  int
	Frame int
}

func (PeerStoppedEditing) ServerVariant() string { return "PeerStoppedEditing" }

// Signal is a payload-free server message (Success, TransportStarted, TransportStopped).
type Signal string

func (s Signal) ServerVariant() string { return string(s) }

const (
	Success          Signal = "Success"
	TransportStarted Signal = "TransportStarted"
	TransportStopped Signal = "TransportStopped"
)

// Unknown carries a variant this client does not understand.
type Unknown struct {
	Variant string
	Raw     json.RawMessage
}

func (u Unknown) ServerVariant() string { return u.Variant }

// Decode parses one server message.
func Decode(b []byte) (ServerMessage, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("decode: empty message")
	}
	if b[0] == '"' {
		var tag string
		if err := json.Unmarshal(b, &tag); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		switch Signal(tag) {
		case Success, TransportStarted, TransportStopped:
			return Signal(tag), nil
		}
		return Unknown{Variant: tag}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(obj) != 1 {
		return nil, fmt.Errorf("decode: expected one variant tag, got %d", len(obj))
	}
	var tag string
	var raw json.RawMessage
	for k, v := range obj {
		tag, raw = k, v
	}
	msg, err := decodeVariant(tag, raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	return msg, nil
}

func decodeVariant(tag string, raw json.RawMessage) (ServerMessage, error) {
	switch tag {
	case "Hello":
		var m Hello
		err := json.Unmarshal(raw, &m)
		return m, err
	case "SceneValue":
		var sc model.Scene
		err := json.Unmarshal(raw, &sc)
		return SceneValue{Scene: &sc}, err
	case "Snapshot":
		var m Snapshot
		err := json.Unmarshal(raw, &m)
		return m, err
	case "FrameRemoved":
		var m FrameRemoved
		err := decodeTuple(raw, &m.Line, &m.Frame)
		return m, err
	case "LineRemoved":
		var m LineRemoved
		err := json.Unmarshal(raw, &m.Line)
		return m, err
	case "FrameInserted":
		var m FrameInserted
		err := decodeTuple(raw, &m.Line, &m.Frame)
		return m, err
	case "LineInserted":
		var m LineInserted
		err := json.Unmarshal(raw, &m.Line)
		return m, err
	case "ClockState":
		var m ClockState
		err := decodeTuple(raw, &m.Tempo, &m.Beat, &m.Micros, &m.Quantum)
		return m, err
	case "FramePosition":
		var m FramePosition
		err := json.Unmarshal(raw, &m.Positions)
		return m, err
	case "InternalError":
		var m InternalError
		err := json.Unmarshal(raw, &m.Message)
		return m, err
	case "LogString":
		var m LogString
		err := json.Unmarshal(raw, &m.Message)
		return m, err
	case "Chat":
		var m ChatReceived
		err := json.Unmarshal(raw, &m.Text)
		return m, err
	case "ConnectionRefused":
		var m ConnectionRefused
		err := json.Unmarshal(raw, &m.Reason)
		return m, err
	case "PeersUpdated":
		var m PeersUpdated
		err := json.Unmarshal(raw, &m.Peers)
		return m, err
	case "PeerGridSelectionUpdate":
		var m PeerGridSelectionUpdate
		err := decodeTuple(raw, &m.Peer, &m.Selection)
		return m, err
	case "PeerStartedEditing":
		var m PeerStartedEditing
		err := decodeTuple(raw, &m.Peer, &m.Line, &m.Frame)
		return m, err
	case "PeerStoppedEditing":
		var m PeerStoppedEditing
		err := decodeTuple(raw, &m.Peer, &m.Line, &m.Frame)
		return m, err
	default:
		return Unknown{Variant: tag, Raw: raw}, nil
	}
}

// decodeTuple decodes a JSON array positionally into dst.
func decodeTuple(b []byte, dst ...any) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) != len(dst) {
		return fmt.Errorf("expected %d elements, got %d", len(dst), len(parts))
	}
	for i, p := range parts {
		if err := json.Unmarshal(p, dst[i]); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}
