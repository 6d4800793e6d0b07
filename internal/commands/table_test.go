package commands

import (
	"os"
	"path/filepath"
	"testing"

	"voicedesk/internal/domain"
)

func writeTableFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "commands.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write commands file: %v", err)
	}
	return path
}

func TestLoadTableMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	table, err := LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(table.Commands) != len(DefaultTable().Commands) {
		t.Fatalf("expected default commands, got %d", len(table.Commands))
	}

	blank, err := LoadTable("  ")
	if err != nil {
		t.Fatalf("load with blank path failed: %v", err)
	}
	if len(blank.Apps) != len(DefaultTable().Apps) {
		t.Fatalf("expected default apps, got %d", len(blank.Apps))
	}
}

func TestLoadTableMergesOverrides(t *testing.T) {
	t.Parallel()

	path := writeTableFile(t, `
wake_word: computer
commands:
  - phrase: Send it
    action: send_and_stop
  - phrase: over and out
    action: send_and_stop
apps:
  editor: Visual Studio Code
`)

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if table.WakeWord != "computer" {
		t.Fatalf("unexpected wake word: %q", table.WakeWord)
	}
	if table.Apps["editor"] != "Visual Studio Code" || table.Apps["terminal"] != "iTerm2" {
		t.Fatalf("expected merged apps, got %#v", table.Apps)
	}

	sendIt := 0
	for _, entry := range table.Commands {
		if Normalize(entry.Phrase) == "send it" {
			sendIt++
			if entry.Action != string(domain.ActionSendAndStop) {
				t.Fatalf("expected override action, got %q", entry.Action)
			}
		}
	}
	if sendIt != 1 {
		t.Fatalf("expected exactly one send it entry, got %d", sendIt)
	}
	if len(table.Commands) != len(DefaultTable().Commands)+1 {
		t.Fatalf("unexpected command count: %d", len(table.Commands))
	}
}

func TestLoadTableReplaceDefaults(t *testing.T) {
	t.Parallel()

	path := writeTableFile(t, `
replace_defaults: true
commands:
  - phrase: ship it
    action: send_and_continue
`)

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(table.Commands) != 1 || len(table.Apps) != 0 {
		t.Fatalf("expected only file entries, got %#v", table)
	}

	detector, err := NewDetector(table)
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}
	if _, err := detector.Match("done send it"); err == nil {
		t.Fatalf("expected default phrase to be gone")
	}
	if _, err := detector.Match("done ship it"); err != nil {
		t.Fatalf("expected file phrase to match: %v", err)
	}
}

func TestLoadTableRejectsInvalidFiles(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown action": "commands:\n  - phrase: go\n    action: teleport\n",
		"empty phrase":   "commands:\n  - phrase: \"  \"\n    action: cancel\n",
		"prefix cancel":  "commands:\n  - phrase: drop\n    action: cancel\n    prefix: true\n",
		"malformed":      "commands: [\n",
	}

	for name, contents := range cases {
		if _, err := LoadTable(writeTableFile(t, contents)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
