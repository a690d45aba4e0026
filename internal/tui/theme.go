package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// The grid must stay readable on light and dark terminals, so every color is an
// AdaptiveColor and faint styling is only used on dark backgrounds.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted     lipgloss.TerminalColor = ac("240", "243")
	colorSurfaceFg lipgloss.TerminalColor = ac("235", "252")
	colorControlBg lipgloss.TerminalColor = ac("252", "235")
	colorInputBg   lipgloss.TerminalColor = ac("254", "234")

	colorSelectedBg lipgloss.TerminalColor = ac("#d0d7ff", "#2c325a")
	colorSelectedFg lipgloss.TerminalColor = ac("235", "255")

	// Neighbouring frames alternate backgrounds so their boundaries show without borders.
	colorFrameBgA lipgloss.TerminalColor = ac("254", "236")
	colorFrameBgB lipgloss.TerminalColor = ac("251", "238")

	colorAccent   lipgloss.TerminalColor = ac("27", "62")
	colorAccentFg lipgloss.TerminalColor = ac("255", "235")
	colorPlaying  lipgloss.TerminalColor = ac("28", "78")
	colorPeer     lipgloss.TerminalColor = ac("130", "214")
	colorDraft    lipgloss.TerminalColor = ac("90", "177")
	colorError    lipgloss.TerminalColor = ac("160", "203")
	colorErrorBg  lipgloss.TerminalColor = ac("196", "160")
)

func styleMuted() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(colorMuted))
}

func styleError() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorError).Bold(true)
}

// applyColorProfilePreference sets Lip Gloss's color profile. An explicit preference from
// the config wins; otherwise NO_COLOR is honored and termenv's guess is upgraded when
// TERM/COLORTERM advertise more than the detector reports.
func applyColorProfilePreference(pref string) {
	switch strings.ToLower(strings.TrimSpace(pref)) {
	case "ascii":
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	case "ansi":
		lipgloss.SetColorProfile(termenv.ANSI)
		return
	case "ansi256":
		lipgloss.SetColorProfile(termenv.ANSI256)
		return
	case "truecolor":
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	profile := termenv.ColorProfile()
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	if strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit") {
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	} else if strings.Contains(term, "256color") && (profile == termenv.Ascii || profile == termenv.ANSI) {
		profile = termenv.ANSI256
	}
	lipgloss.SetColorProfile(profile)
}

// applyThemePreference configures Lip Gloss's background detection.
//
// Priority:
// 1) SOVA_TUI_THEME=light|dark|auto
// 2) SOVA_TUI_DARKBG=true|false
// 3) COLORFGBG ("fg;bg", last segment is the background)
func applyThemePreference() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SOVA_TUI_THEME"))) {
	case "light":
		lipgloss.SetHasDarkBackground(false)
		return
	case "dark":
		lipgloss.SetHasDarkBackground(true)
		return
	}

	if v := strings.TrimSpace(os.Getenv("SOVA_TUI_DARKBG")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			lipgloss.SetHasDarkBackground(b)
			return
		}
	}

	if dark, ok := darkFromColorFGBG(os.Getenv("COLORFGBG")); ok {
		lipgloss.SetHasDarkBackground(dark)
	}
}

// darkFromColorFGBG reads the xterm palette index of the background: 0-6 are dark.
func darkFromColorFGBG(v string) (dark bool, ok bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return false, false
	}
	parts := strings.Split(v, ";")
	bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1]))
	if err != nil || bg < 0 {
		return false, false
	}
	return bg < 7, true
}
