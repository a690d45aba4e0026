package tui

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	mdRendererMu sync.Mutex
	// Renderers are cached by style and wrap width. WithAutoStyle is avoided since its
	// terminal queries can block.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

// renderMarkdown renders the help overlay and `sova docs`. On any renderer error the
// source text is returned unchanged.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 20 {
		width = 20
	}

	style := markdownStyle()
	key := style + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	r := mdRenderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStyles(markdownStyleConfig(style)),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			mdRendererMu.Unlock()
			return md
		}
		mdRenderers[key] = rr
		r = rr
	}
	mdRendererMu.Unlock()

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// RenderMarkdown is renderMarkdown for the CLI's docs command.
func RenderMarkdown(md string, width int) string {
	applyThemePreference()
	return renderMarkdown(md, width)
}

func markdownStyleConfig(style string) ansi.StyleConfig {
	cfg := styles.DarkStyleConfig
	if style == "light" {
		cfg = styles.LightStyleConfig
	}
	headings := mdColor(colorSurfaceFg, style)
	cfg.H1.Color = headings
	cfg.H2.Color = headings
	cfg.H3.Color = headings
	cfg.Text.Color = mdColor(colorSurfaceFg, style)
	cfg.Code.Color = mdColor(colorAccent, style)
	zero := uint(0)
	cfg.Document.Margin = &zero
	return cfg
}

func markdownStyle() string {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SOVA_TUI_MD_STYLE"))) {
	case "light":
		return "light"
	case "dark":
		return "dark"
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SOVA_TUI_THEME"))) {
	case "light":
		return "light"
	case "dark":
		return "dark"
	}
	if v := strings.TrimSpace(os.Getenv("SOVA_TUI_DARKBG")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			if b {
				return "dark"
			}
			return "light"
		}
	}
	if dark, ok := darkFromColorFGBG(os.Getenv("COLORFGBG")); ok {
		if dark {
			return "dark"
		}
		return "light"
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

func mdColor(c lipgloss.TerminalColor, style string) *string {
	a, ok := c.(lipgloss.AdaptiveColor)
	if !ok {
		return nil
	}
	s := a.Dark
	if style == "light" {
		s = a.Light
	}
	return &s
}
