package tui

import (
	"os"
	"strings"
	"sync"
)

// Some fonts render box and arrow glyphs poorly, so every affordance has an ASCII twin.

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

// applyGlyphPreference picks the set from the config value, then SOVA_TUI_GLYPHS.
// Unknown values leave the current set alone.
func applyGlyphPreference(pref string) {
	v := strings.ToLower(strings.TrimSpace(pref))
	if env := strings.ToLower(strings.TrimSpace(os.Getenv("SOVA_TUI_GLYPHS"))); env != "" {
		v = env
	}
	switch v {
	case "", "unicode", "utf8":
		setGlyphs(glyphSetUnicode)
	case "ascii":
		setGlyphs(glyphSetASCII)
	}
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	currentGlyphs = gs
	glyphsMu.Unlock()
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	gs := currentGlyphs
	glyphsMu.RUnlock()
	return gs
}

func pick(unicode, ascii string) string {
	if glyphs() == glyphSetASCII {
		return ascii
	}
	return unicode
}

func glyphPlaying() string { return pick("▶", ">") }
func glyphPaused() string { return pick("■", "#") }
func glyphPeer() string { return pick("✎", "@") }
func glyphDraft() string { return pick("•", "*") }
func glyphDisabled() string { return pick("○", "o") }
func glyphResizeH() string { return pick("▕", "|") }
func glyphResizeV() string { return pick("▁", "_") }
func glyphDropH() string { return pick("┃", "!") }
func glyphDropV() string { return pick("━", "=") }
func glyphSeparator() string { return pick("│", "|") }
func glyphHRule() string { return pick("─", "-") }
