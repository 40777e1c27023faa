// Package settings is the settings collaborator: a small SQLite-backed
// store with an explicit change-notification loop. The reading and compose
// pipelines subscribe to changes instead of polling ambient storage.
package settings

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Mode selects the reading presentation strategy.
type Mode string

const (
	// ModeAuto replaces message text in place as messages arrive.
	ModeAuto Mode = "auto"
	// ModeClick attaches per-region toggle controls.
	ModeClick Mode = "click"
)

// Settings is the full user configuration the core consumes.
type Settings struct {
	ReadingMode       Mode     `json:"reading_mode" yaml:"reading_mode"`
	ReadingTargetLang string   `json:"reading_target_lang" yaml:"reading_target_lang"`
	WritingEnabled    bool     `json:"writing_enabled" yaml:"writing_enabled"`
	WritingTargetLang string   `json:"writing_target_lang" yaml:"writing_target_lang"`
	Shortcut          Shortcut `json:"shortcut" yaml:"shortcut"`
}

// Defaults returns the out-of-the-box configuration.
func Defaults() Settings {
	return Settings{
		ReadingMode:       ModeAuto,
		ReadingTargetLang: "en",
		WritingEnabled:    false,
		WritingTargetLang: "en",
		Shortcut:          Shortcut{Ctrl: true, Key: "i"},
	}
}

// Validate checks invariants before persisting.
func (s Settings) Validate() error {
	switch s.ReadingMode {
	case ModeAuto, ModeClick:
	default:
		return fmt.Errorf("settings: invalid reading mode %q", s.ReadingMode)
	}
	if s.ReadingTargetLang == "" {
		return fmt.Errorf("settings: empty reading target language")
	}
	if s.WritingTargetLang == "" {
		return fmt.Errorf("settings: empty writing target language")
	}
	return s.Shortcut.Validate()
}

// Shortcut is the compose-translation key binding: a modifier set plus
// exactly one non-modifier key.
type Shortcut struct {
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Key   string `json:"key"`
}

// KeyEvent is a raw keydown forwarded from the page.
type KeyEvent struct {
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Key   string `json:"key"`
}

// Validate rejects shortcuts whose key is itself a modifier or empty.
func (s Shortcut) Validate() error {
	switch strings.ToLower(s.Key) {
	case "":
		return fmt.Errorf("settings: shortcut has no key")
	case "control", "ctrl", "shift", "alt", "meta":
		return fmt.Errorf("settings: shortcut key %q is a modifier", s.Key)
	}
	return nil
}

// Matches reports whether a keydown event triggers the shortcut. The
// modifier set must match exactly; single-character keys compare
// case-insensitively (the host reports "I" when shift or caps is involved),
// named keys ("F9", "Enter") compare exactly.
func (s Shortcut) Matches(ev KeyEvent) bool {
	if s.Ctrl != ev.Ctrl || s.Shift != ev.Shift || s.Alt != ev.Alt {
		return false
	}
	if utf8.RuneCountInString(s.Key) == 1 && utf8.RuneCountInString(ev.Key) == 1 {
		return strings.EqualFold(s.Key, ev.Key)
	}
	return s.Key == ev.Key
}

// String renders the shortcut for logs and the control API.
func (s Shortcut) String() string {
	var parts []string
	if s.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if s.Shift {
		parts = append(parts, "Shift")
	}
	if s.Alt {
		parts = append(parts, "Alt")
	}
	parts = append(parts, strings.ToUpper(s.Key))
	return strings.Join(parts, "+")
}
