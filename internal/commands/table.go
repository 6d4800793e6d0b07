package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"voicedesk/internal/domain"
)

// Entry maps a spoken phrase to an action.
type Entry struct {
	Phrase string `yaml:"phrase"`
	Action string `yaml:"action"`
	// Prefix entries expect the spoken target to follow the phrase, as in
	// "switch to terminal".
	Prefix bool `yaml:"prefix,omitempty"`
	// Target pins a navigate entry to one application.
	Target string `yaml:"target,omitempty"`
}

// Table is the phrase -> action configuration of a Detector.
type Table struct {
	WakeWord string            `yaml:"wake_word"`
	Commands []Entry           `yaml:"commands"`
	Apps     map[string]string `yaml:"apps"`
	// ReplaceDefaults drops the built-in commands and apps when loading a file.
	ReplaceDefaults bool `yaml:"replace_defaults"`
}

// DefaultTable returns the built-in command grammar.
func DefaultTable() Table {
	return Table{
		Commands: []Entry{
			{Phrase: "send it", Action: string(domain.ActionSendAndContinue)},
			{Phrase: "send and continue", Action: string(domain.ActionSendAndContinue)},
			{Phrase: "stop recording", Action: string(domain.ActionSendAndStop)},
			{Phrase: "send and stop", Action: string(domain.ActionSendAndStop)},
			{Phrase: "cancel recording", Action: string(domain.ActionCancel)},
			{Phrase: "pause recording", Action: string(domain.ActionPause)},
			{Phrase: "pause listening", Action: string(domain.ActionPause)},
			{Phrase: "resume listening", Action: string(domain.ActionResumeListening)},
			{Phrase: "resume recording", Action: string(domain.ActionResumeListening)},
			{Phrase: "back to dictation", Action: string(domain.ActionResumeListening)},
			{Phrase: "switch to", Action: string(domain.ActionNavigate), Prefix: true},
			{Phrase: "go to", Action: string(domain.ActionNavigate), Prefix: true},
			{Phrase: "focus on", Action: string(domain.ActionNavigate), Prefix: true},
		},
		Apps: map[string]string{
			"terminal":      "iTerm2",
			"iterm":         "iTerm2",
			"chrome":        "Google Chrome",
			"google chrome": "Google Chrome",
			"browser":       "Google Chrome",
			"finder":        "Finder",
			"slack":         "Slack",
			"spotify":       "Spotify",
			"notes":         "Notes",
			"notes app":     "Notes",
			"mail":          "Mail",
			"email":         "Mail",
		},
	}
}

// LoadTable reads a YAML command table. A blank path or missing file yields
// the defaults; file entries override defaults with the same phrase unless
// replace_defaults is set.
func LoadTable(path string) (Table, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTable(), nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultTable(), nil
		}
		return Table{}, fmt.Errorf("failed to read commands file %q: %w", path, err)
	}

	var file Table
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return Table{}, fmt.Errorf("failed to parse commands file %q: %w", path, err)
	}
	if err := file.Validate(); err != nil {
		return Table{}, fmt.Errorf("invalid commands file %q: %w", path, err)
	}

	if file.ReplaceDefaults {
		return file, nil
	}
	return mergeTables(DefaultTable(), file), nil
}

// Validate checks every entry names a phrase and a known action.
func (t Table) Validate() error {
	for index, entry := range t.Commands {
		if len(normalizeWords(entry.Phrase)) == 0 {
			return fmt.Errorf("command %d: phrase cannot be empty", index+1)
		}
		if domain.ParseActionKind(entry.Action) == domain.ActionUnknown {
			return fmt.Errorf("command %d: unknown action %q", index+1, entry.Action)
		}
		if entry.Prefix && domain.ParseActionKind(entry.Action) != domain.ActionNavigate {
			return fmt.Errorf("command %d: only navigate commands can be prefix commands", index+1)
		}
	}
	return nil
}

func mergeTables(base Table, overlay Table) Table {
	merged := Table{
		WakeWord: base.WakeWord,
		Apps:     make(map[string]string, len(base.Apps)+len(overlay.Apps)),
	}
	if strings.TrimSpace(overlay.WakeWord) != "" {
		merged.WakeWord = overlay.WakeWord
	}

	overridden := make(map[string]bool, len(overlay.Commands))
	for _, entry := range overlay.Commands {
		overridden[Normalize(entry.Phrase)] = true
	}
	for _, entry := range base.Commands {
		if !overridden[Normalize(entry.Phrase)] {
			merged.Commands = append(merged.Commands, entry)
		}
	}
	merged.Commands = append(merged.Commands, overlay.Commands...)

	for alias, app := range base.Apps {
		merged.Apps[alias] = app
	}
	for alias, app := range overlay.Apps {
		merged.Apps[alias] = app
	}
	return merged
}
