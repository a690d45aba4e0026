package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"sova-cli/internal/model"
)

type TimingKind int

const (
	TimingImmediate TimingKind = iota
	TimingEndOfLine
	TimingAtBeat
)

func (k TimingKind) String() string {
	switch k {
	case TimingImmediate:
		return "Immediate"
	case TimingEndOfLine:
		return "EndOfLine"
	case TimingAtBeat:
		return "AtBeat"
	default:
		return fmt.Sprintf("TimingKind(%d)", int(k))
	}
}

// ActionTiming says when the server should apply a mutation. The zero value is Immediate.
//
// The client only builds and transmits it; scheduling is entirely up to the server.
type ActionTiming struct {
	kind TimingKind
	line int
	beat uint64
}

func Immediate() ActionTiming { return ActionTiming{kind: TimingImmediate} }

// EndOfLine applies the action when line next wraps around its loop.
func EndOfLine(line int) ActionTiming { return ActionTiming{kind: TimingEndOfLine, line: line} }

// AtBeat applies the action once the transport reaches beat.
func AtBeat(beat uint64) ActionTiming { return ActionTiming{kind: TimingAtBeat, beat: beat} }

func (t ActionTiming) Kind() TimingKind { return t.kind }

// Line is the line index of an EndOfLine timing.
func (t ActionTiming) Line() int { return t.line }

// Beat is the target beat of an AtBeat timing.
func (t ActionTiming) Beat() uint64 { return t.beat }

func (t ActionTiming) String() string {
	switch t.kind {
	case TimingEndOfLine:
		return fmt.Sprintf("EndOfLine(%d)", t.line)
	case TimingAtBeat:
		return fmt.Sprintf("AtBeat(%d)", t.beat)
	default:
		return "Immediate"
	}
}

func (t ActionTiming) MarshalJSON() ([]byte, error) {
	switch t.kind {
	case TimingImmediate:
		return []byte(`"Immediate"`), nil
	case TimingEndOfLine:
		return json.Marshal(map[string]int{"EndOfLine": t.line})
	case TimingAtBeat:
		return json.Marshal(map[string]uint64{"AtBeat": t.beat})
	default:
		return nil, UnknownTimingError{Tag: t.kind.String()}
	}
}

type UnknownTimingError struct {
	Tag string
}

func (e UnknownTimingError) Error() string {
	return fmt.Sprintf("unknown action timing: %s", e.Tag)
}

func (t *ActionTiming) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var tag string
		if err := json.Unmarshal(b, &tag); err != nil {
			return err
		}
		if tag != "Immediate" {
			return UnknownTimingError{Tag: tag}
		}
		*t = Immediate()
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("action timing: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("action timing: expected exactly one tag, got %d", len(obj))
	}
	for tag, raw := range obj {
		switch tag {
		case "EndOfLine":
			var line int
			if err := json.Unmarshal(raw, &line); err != nil {
				return fmt.Errorf("action timing EndOfLine: %w", err)
			}
			*t = EndOfLine(line)
		case "AtBeat":
			var beat uint64
			if err := json.Unmarshal(raw, &beat); err != nil {
				return fmt.Errorf("action timing AtBeat: %w", err)
			}
			*t = AtBeat(beat)
		default:
			return UnknownTimingError{Tag: tag}
		}
	}
	return nil
}

// Due reports whether the server would consider a deferred action ready, given the beat at
// the previous and current scheduler ticks. EndOfLine fires when the line's position wraps
// between the two ticks. Immediate actions are never deferred, so they are never due. This
// mirrors the server's scheduler and is only used for previews.
func (t ActionTiming) Due(current, last float64, lines []model.Line) bool {
	switch t.kind {
	case TimingImmediate:
		return false
	case TimingAtBeat:
		return current >= float64(t.beat)
	case TimingEndOfLine:
		if len(lines) == 0 {
			return false
		}
		n := len(lines)
		length := lines[((t.line%n)+n)%n].Length()
		if length <= 0 {
			return false
		}
		return math.Mod(last, length) > math.Mod(current, length)
	default:
		return false
	}
}
