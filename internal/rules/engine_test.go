package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mustEngine(t *testing.T, contents string, opts ...Option) *Engine {
	t.Helper()

	engine, err := NewEngineFromText(contents, 30, opts...)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func mustApply(t *testing.T, engine *Engine, input string) string {
	t.Helper()

	output, err := engine.Apply(input)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	return output
}

func TestEngineLoadsRulesFile(t *testing.T) {
	t.Parallel()

	rulesPath := filepath.Join(t.TempDir(), "substitutions.rules")
	rules := `
# literal
pull request => PR
# regex, case-insensitive by default
s/\bgit\s*hub\b/GitHub/g
`
	if err := os.WriteFile(rulesPath, []byte(rules), 0o600); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	engine, err := NewEngine(rulesPath, 30)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if engine.Len() != 2 {
		t.Fatalf("expected 2 rules, got %d", engine.Len())
	}

	if output := mustApply(t, engine, "open a pull request on git hub"); output != "open a PR on GitHub" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineMissingFileHasNoRules(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(filepath.Join(t.TempDir(), "missing.rules"), 0)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if output := mustApply(t, engine, "unchanged text"); output != "unchanged text" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineReportsLineOfBadRule(t *testing.T) {
	t.Parallel()

	rulesPath := filepath.Join(t.TempDir(), "substitutions.rules")
	if err := os.WriteFile(rulesPath, []byte("ok => fine\nnot-a-rule\n"), 0o600); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	_, err := NewEngine(rulesPath, 30)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line 2 error, got %v", err)
	}
}

func TestEngineIteratesUntilStable(t *testing.T) {
	t.Parallel()

	engine := mustEngine(t, "a => b\nb => c\n")
	if output := mustApply(t, engine, "a"); output != "c" {
		t.Fatalf("expected c, got %q", output)
	}
}

func TestEngineStopsAtIterationLimit(t *testing.T) {
	t.Parallel()

	engine, err := NewEngineFromText("s/x/xx/", 3)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if output := mustApply(t, engine, "x"); output != "xxxx" {
		t.Fatalf("expected three expansions, got %q", output)
	}
}

func TestLiteralRuleMatchesWholeWords(t *testing.T) {
	t.Parallel()

	engine := mustEngine(t, "cat => dog\nsolid complaint => SOLID-compliant\nC# => C sharp\n")

	if output := mustApply(t, engine, "Cat concatenate"); output != "dog concatenate" {
		t.Fatalf("unexpected output: %q", output)
	}
	if output := mustApply(t, engine, "solid complaint plan"); output != "SOLID-compliant plan" {
		t.Fatalf("unexpected output: %q", output)
	}
	if output := mustApply(t, engine, "write C# code"); output != "write C sharp code" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestLiteralRuleKeepsDollarSigns(t *testing.T) {
	t.Parallel()

	engine := mustEngine(t, "five dollars => $5\n")
	if output := mustApply(t, engine, "it costs five dollars"); output != "it costs $5" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestRegexRuleWithoutGlobalReplacesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	rule, err := parseRegexRule(`s/foo/bar/`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, changed := rule.Apply("foo foo")
	if !changed {
		t.Fatalf("expected changed=true")
	}
	if output != "bar foo" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestRegexRuleExpandsGroupsAndEscapedDelimiter(t *testing.T) {
	t.Parallel()

	rule, err := parseRegexRule(`s/(\d+) slash (\d+)/$1\/$2/g`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, _ := rule.Apply("page 3 slash 4")
	if output != "page 3/4" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestRegexRuleCaseSensitiveFlag(t *testing.T) {
	t.Parallel()

	rule, err := parseRegexRule(`s/Go/golang/gI`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, _ := rule.Apply("go Go")
	if output != "go golang" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestParseRegexRuleErrors(t *testing.T) {
	t.Parallel()

	for _, line := range []string{`s/foo/bar/x`, `s/foo`, `s/(/x/`} {
		if _, err := parseRegexRule(line); err == nil {
			t.Fatalf("expected error for %q", line)
		}
	}
}

func TestDropRuleRemovesFillers(t *testing.T) {
	t.Parallel()

	engine := mustEngine(t, "drop: uh, um, you know\n")

	cases := map[string]string{
		"i uh think um we should go":   "i think we should go",
		"Um, I think, uh, it works.":   "I think, it works.",
		"so you know it's done um.":    "so it's done.",
		"umbrella and uhura stay here": "umbrella and uhura stay here",
	}
	for input, want := range cases {
		if output := mustApply(t, engine, input); output != want {
			t.Fatalf("drop(%q) = %q, want %q", input, output, want)
		}
	}
}

func TestDropRuleRequiresWords(t *testing.T) {
	t.Parallel()

	if _, err := NewEngineFromText("drop: , ,", 30); err == nil {
		t.Fatalf("expected error for empty drop list")
	}
}

func TestRepeatCollapse(t *testing.T) {
	t.Parallel()

	engine := mustEngine(t, "", WithRepeatCollapse(true))

	cases := map[string]string{
		"we we should go":        "we should go",
		"I I I think so":         "I think so",
		"The the plan":           "The plan",
		"no, no, that is fine":   "no, no, that is fine",
		"nothing repeated here.": "nothing repeated here.",
	}
	for input, want := range cases {
		if output := mustApply(t, engine, input); output != want {
			t.Fatalf("collapse(%q) = %q, want %q", input, output, want)
		}
	}

	plain := mustEngine(t, "")
	if output := mustApply(t, plain, "we we"); output != "we we" {
		t.Fatalf("collapse must be opt-in, got %q", output)
	}
}

func TestEngineSupportsParserExtension(t *testing.T) {
	t.Parallel()

	parsers := append([]RuleParser{prefixRuleParser{}}, defaultRuleParsers()...)
	engine := mustEngine(t, "prefix:Hello=>Howdy\n", WithParsers(parsers...))

	if output := mustApply(t, engine, "hello world"); output != "Howdy world" {
		t.Fatalf("unexpected output: %q", output)
	}
}

type prefixRuleParser struct{}

func (prefixRuleParser) CanParse(line string) bool {
	return strings.HasPrefix(line, "prefix:")
}

func (prefixRuleParser) Parse(line string) (compiledRule, error) {
	payload := strings.TrimPrefix(line, "prefix:")
	from, to, ok := strings.Cut(payload, "=>")
	if !ok {
		return nil, fmt.Errorf("invalid prefix rule")
	}
	return parseLiteralRule(from + " => " + to)
}
