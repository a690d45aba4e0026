// Package format writes the envelopes printed by the one-shot commands.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Envelope is what every one-shot command prints: the result under data, and context such
// as counts, paths or the server address under meta.
type Envelope struct {
	Data any            `json:"data"`
	Meta map[string]any `json:"meta,omitempty"`
}

// Write writes v in format, which is "json" (the default) or "edn".
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "edn":
		return WriteEDN(w, v, pretty)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes one JSON document followed by a newline. Script text is printed as
// typed: <, > and & are not escaped.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
