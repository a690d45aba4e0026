package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const configFileName = "config.json"

const (
	DefaultServer       = "127.0.0.1:8080"
	DefaultSnap         = 0.25
	DefaultCellsPerBeat = 8
	DefaultPoll         = 50 * time.Millisecond
)

// Config is the user's settings. Zero values mean "use the default"; read them through
// the accessor methods.
type Config struct {
	Server          string  `json:"server,omitempty"`
	Username        string  `json:"username,omitempty"`
	SnapGranularity float64 `json:"snapGranularity,omitempty"`
	// PixelsPerBeat is the horizontal zoom; in the terminal a pixel is one column.
	PixelsPerBeat float64 `json:"pixelsPerBeat,omitempty"`
	Vertical      bool    `json:"vertical,omitempty"`
	// Drafts keeps unsent script edits in drafts.sqlite across restarts.
	Drafts     *bool `json:"drafts,omitempty"`
	PollMillis int   `json:"pollMillis,omitempty"`

	TUI *TUIConfig `json:"tui,omitempty"`
}

type TUIConfig struct {
	// ColorProfile forces a terminal color profile: auto|ascii|ansi|ansi256|truecolor.
	ColorProfile string `json:"colorProfile,omitempty"`
	// Glyphs selects the glyph set: unicode|ascii.
	Glyphs string `json:"glyphs,omitempty"`
}

func (c *Config) ServerAddr() string {
	if c == nil || strings.TrimSpace(c.Server) == "" {
		return DefaultServer
	}
	return strings.TrimSpace(c.Server)
}

func (c *Config) Snap() float64 {
	if c == nil || !(c.SnapGranularity > 0) || math.IsInf(c.SnapGranularity, 0) {
		return DefaultSnap
	}
	return c.SnapGranularity
}

func (c *Config) CellsPerBeat() float64 {
	if c == nil || !(c.PixelsPerBeat > 0) || math.IsInf(c.PixelsPerBeat, 0) {
		return DefaultCellsPerBeat
	}
	return c.PixelsPerBeat
}

func (c *Config) DraftsEnabled() bool {
	return c == nil || c.Drafts == nil || *c.Drafts
}

func (c *Config) PollInterval() time.Duration {
	if c == nil || c.PollMillis <= 0 {
		return DefaultPoll
	}
	return time.Duration(c.PollMillis) * time.Millisecond
}

func (c *Config) ColorProfile() string {
	if c == nil || c.TUI == nil {
		return ""
	}
	return strings.TrimSpace(c.TUI.ColorProfile)
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.sova).
	if v := strings.TrimSpace(os.Getenv("SOVA_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sova"), nil
}

func (s Store) ConfigPath() string {
	return s.path(configFileName)
}

// LoadFileConfig reads config.json as written, without environment overrides.
func (s Store) LoadFileConfig() (*Config, error) {
	b, err := os.ReadFile(s.ConfigPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", s.ConfigPath(), err)
	}
	return &cfg, nil
}

// envOverrides are the SOVA_* variables; unset variables leave the file value alone.
type envOverrides struct {
	Server        *string  `env:"SOVA_SERVER"`
	Username      *string  `env:"SOVA_USERNAME"`
	Snap          *float64 `env:"SOVA_SNAP"`
	PixelsPerBeat *float64 `env:"SOVA_PIXELS_PER_BEAT"`
	Vertical      *bool    `env:"SOVA_VERTICAL"`
	Drafts        *bool    `env:"SOVA_DRAFTS"`
	PollMillis    *int     `env:"SOVA_POLL_MS"`
	ColorProfile  *string  `env:"SOVA_COLOR_PROFILE"`
}

func (o envOverrides) apply(cfg *Config) {
	if o.Server != nil {
		cfg.Server = *o.Server
	}
	if o.Username != nil {
		cfg.Username = *o.Username
	}
	if o.Snap != nil {
		cfg.SnapGranularity = *o.Snap
	}
	if o.PixelsPerBeat != nil {
		cfg.PixelsPerBeat = *o.PixelsPerBeat
	}
	if o.Vertical != nil {
		cfg.Vertical = *o.Vertical
	}
	if o.Drafts != nil {
		cfg.Drafts = o.Drafts
	}
	if o.PollMillis != nil {
		cfg.PollMillis = *o.PollMillis
	}
	if o.ColorProfile != nil {
		if cfg.TUI == nil {
			cfg.TUI = &TUIConfig{}
		}
		cfg.TUI.ColorProfile = *o.ColorProfile
	}
}

// LoadConfig reads config.json and applies SOVA_* environment overrides.
func (s Store) LoadConfig() (*Config, error) {
	cfg, err := s.LoadFileConfig()
	if err != nil {
		return nil, err
	}
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	o.apply(cfg)
	return cfg, nil
}

func (s Store) SaveConfig(cfg *Config) error {
	if err := s.Ensure(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	path := s.ConfigPath()

	// Keep the previous config around so an accidental overwrite can be undone.
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = atomicWriteFile(s.Dir, "config.json.bak.*.tmp", path+".bak", prev, 0o644)
	}
	return atomicWriteFile(s.Dir, "config.json.*.tmp", path, b, 0o600)
}

// ConfigKeys lists the keys accepted by Set.
func ConfigKeys() []string {
	keys := []string{"server", "username", "snap", "pixelsPerBeat", "vertical", "drafts", "pollMillis", "colorProfile", "glyphs"}
	sort.Strings(keys)
	return keys
}

type UnknownConfigKeyError struct {
	Key string
}

func (e UnknownConfigKeyError) Error() string {
	return fmt.Sprintf("unknown config key %q (expected one of: %s)", e.Key, strings.Join(ConfigKeys(), ", "))
}

// Set assigns one setting from its string form.
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	positive := func() (float64, error) {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || !(v > 0) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%s: expected a positive number, got %q", key, value)
		}
		return v, nil
	}
	switch key {
	case "server":
		c.Server = value
	case "username":
		c.Username = value
	case "snap":
		v, err := positive()
		if err != nil {
			return err
		}
		c.SnapGranularity = v
	case "pixelsPerBeat":
		v, err := positive()
		if err != nil {
			return err
		}
		c.PixelsPerBeat = v
	case "vertical":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("vertical: %w", err)
		}
		c.Vertical = v
	case "drafts":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("drafts: %w", err)
		}
		c.Drafts = &v
	case "pollMillis":
		v, err := strconv.Atoi(value)
		if err != nil || v < 0 {
			return fmt.Errorf("pollMillis: expected a non-negative integer, got %q", value)
		}
		c.PollMillis = v
	case "colorProfile":
		switch strings.ToLower(value) {
		case "", "auto", "ascii", "ansi", "ansi256", "truecolor":
		default:
			return fmt.Errorf("colorProfile: unknown profile %q", value)
		}
		if c.TUI == nil {
			c.TUI = &TUIConfig{}
		}
		c.TUI.ColorProfile = strings.ToLower(value)
	case "glyphs":
		switch value {
		case "", "unicode", "ascii":
		default:
			return fmt.Errorf("glyphs: expected unicode or ascii, got %q", value)
		}
		if c.TUI == nil {
			c.TUI = &TUIConfig{}
		}
		c.TUI.Glyphs = value
	default:
		return UnknownConfigKeyError{Key: key}
	}
	return nil
}
