package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const defaultIterationLimit = 30

type compiledRule interface {
	Apply(input string) (output string, changed bool)
}

// RuleParser turns one rules-file line into a rule.
type RuleParser interface {
	CanParse(line string) bool
	Parse(line string) (compiledRule, error)
}

// Option tweaks an Engine at construction.
type Option func(*engineOptions)

type engineOptions struct {
	parsers         []RuleParser
	collapseRepeats bool
}

// WithParsers replaces the built-in parsers, e.g. to add a custom syntax in
// front of them.
func WithParsers(parsers ...RuleParser) Option {
	return func(o *engineOptions) {
		if len(parsers) > 0 {
			o.parsers = parsers
		}
	}
}

// WithRepeatCollapse appends a rule folding stutters like "we we" into "we".
func WithRepeatCollapse(enabled bool) Option {
	return func(o *engineOptions) {
		o.collapseRepeats = enabled
	}
}

// Engine rewrites transcripts with word replacements until they stop changing
// or the iteration limit is hit.
type Engine struct {
	rules          []compiledRule
	iterationLimit int
}

// NewEngine loads rules from path. A blank path or missing file gives an
// engine with no file rules.
func NewEngine(path string, iterationLimit int, opts ...Option) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return NewEngineFromText("", iterationLimit, opts...)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewEngineFromText("", iterationLimit, opts...)
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}

	engine, err := NewEngineFromText(string(contents), iterationLimit, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}
	return engine, nil
}

// NewEngineFromText compiles rules held in memory.
func NewEngineFromText(contents string, iterationLimit int, opts ...Option) (*Engine, error) {
	options := engineOptions{parsers: defaultRuleParsers()}
	for _, opt := range opts {
		opt(&options)
	}
	if iterationLimit <= 0 {
		iterationLimit = defaultIterationLimit
	}

	rules, err := parseRules(contents, options.parsers)
	if err != nil {
		return nil, err
	}
	if options.collapseRepeats {
		rules = append(rules, repeatedWordRule{})
	}

	return &Engine{rules: rules, iterationLimit: iterationLimit}, nil
}

// Len reports how many rules are compiled.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply runs every rule in file order, repeating passes until the text is
// stable. Hitting the iteration limit is not an error; the last text wins.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	result := text
	for pass := 0; pass < e.iterationLimit; pass++ {
		changed := false
		for _, rule := range e.rules {
			if next, ruleChanged := rule.Apply(result); ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result, nil
}

func parseRules(contents string, parsers []RuleParser) ([]compiledRule, error) {
	lines := strings.Split(contents, "\n")
	rules := make([]compiledRule, 0, len(lines))

	for index, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := parseLine(line, parsers)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func parseLine(line string, parsers []RuleParser) (compiledRule, error) {
	for _, parser := range parsers {
		if parser.CanParse(line) {
			return parser.Parse(line)
		}
	}
	return nil, errors.New("unsupported rule format")
}

// dropRuleParser runs first so "drop: so => x" stays a drop list.
func defaultRuleParsers() []RuleParser {
	return []RuleParser{dropRuleParser{}, regexRuleParser{}, literalRuleParser{}}
}
