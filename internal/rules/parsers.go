package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

var (
	wordPattern  = regexp.MustCompile(`[\p{L}\p{N}]+(?:'[\p{L}\p{N}]+)*`)
	extraSpaces  = regexp.MustCompile(`[ \t]{2,}`)
	spaceBefore  = regexp.MustCompile(`\s+([,.!?;:])`)
	leadingComma = regexp.MustCompile(`(^|[.!?]\s*),\s*`)
)

type literalRuleParser struct{}

func (literalRuleParser) CanParse(line string) bool {
	return strings.Contains(line, "=>")
}

func (literalRuleParser) Parse(line string) (compiledRule, error) {
	return parseLiteralRule(line)
}

// literalRule replaces a phrase case-insensitively. Sources that start or end
// on a word character only match whole words, so "cat => dog" leaves
// "concatenate" alone.
type literalRule struct {
	re          *regexp.Regexp
	replacement string
}

func parseLiteralRule(line string) (compiledRule, error) {
	from, to, ok := strings.Cut(line, "=>")
	if !ok {
		return nil, errors.New("invalid literal rule")
	}
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}

	pattern := regexp.QuoteMeta(from)
	if isWordRune(firstRune(from)) {
		pattern = `\b` + pattern
	}
	if isWordRune(lastRune(from)) {
		pattern += `\b`
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	// Literal replacements never expand $1 style groups.
	return literalRule{re: re, replacement: strings.ReplaceAll(to, "$", "$$")}, nil
}

func (r literalRule) Apply(input string) (string, bool) {
	output := r.re.ReplaceAllString(input, r.replacement)
	return output, output != input
}

type regexRuleParser struct{}

func (regexRuleParser) CanParse(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isAlphaNumericOrSpace(line[1])
}

func (regexRuleParser) Parse(line string) (compiledRule, error) {
	return parseRegexRule(line)
}

type regexRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

// parseRegexRule reads sed syntax: s/pattern/replacement/flags. Matching is
// case-insensitive unless the rule says otherwise with I.
func parseRegexRule(line string) (compiledRule, error) {
	if len(line) < 2 {
		return nil, errors.New("invalid regex rule")
	}
	delim := line[1]
	if isAlphaNumericOrSpace(delim) {
		return nil, errors.New("regex delimiter must be non-alphanumeric")
	}

	pattern, pos, err := parseDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, pos, err := parseDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}

	ignoreCase, global := true, false
	modifiers := ""
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i':
			ignoreCase = true
		case 'I':
			ignoreCase = false
		case 'g':
			global = true
		case 'm', 's':
			if !strings.ContainsRune(modifiers, flag) {
				modifiers += string(flag)
			}
		case ' ':
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}
	if ignoreCase {
		modifiers = "i" + modifiers
	}
	if modifiers != "" {
		pattern = "(?" + modifiers + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return regexRule{re: re, replacement: replacement, global: global}, nil
}

func (r regexRule) Apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := r.re.ExpandString(nil, r.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

type dropRuleParser struct{}

func (dropRuleParser) CanParse(line string) bool {
	return strings.HasPrefix(strings.ToLower(line), "drop:")
}

func (dropRuleParser) Parse(line string) (compiledRule, error) {
	return parseDropRule(line)
}

// dropRule deletes filler words such as "uh" and "um", along with a comma
// that directly follows them, then tidies the spacing left behind.
type dropRule struct {
	re *regexp.Regexp
}

func parseDropRule(line string) (compiledRule, error) {
	list := strings.TrimSpace(line[len("drop:"):])
	words := lo.Uniq(lo.FilterMap(strings.Split(list, ","), func(word string, _ int) (string, bool) {
		word = strings.TrimSpace(word)
		return regexp.QuoteMeta(word), word != ""
	}))
	if len(words) == 0 {
		return nil, errors.New("drop rule needs at least one word")
	}

	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b,?`)
	if err != nil {
		return nil, fmt.Errorf("invalid drop list: %w", err)
	}
	return dropRule{re: re}, nil
}

func (r dropRule) Apply(input string) (string, bool) {
	if !r.re.MatchString(input) {
		return input, false
	}
	output := r.re.ReplaceAllString(input, "")
	output = tidySpacing(output)
	return output, output != input
}

// repeatedWordRule folds immediately repeated words separated only by
// whitespace. The first spelling is kept.
type repeatedWordRule struct{}

func (repeatedWordRule) Apply(input string) (string, bool) {
	locs := wordPattern.FindAllStringIndex(input, -1)
	if len(locs) < 2 {
		return input, false
	}

	var builder strings.Builder
	last := 0
	for i := 1; i < len(locs); i++ {
		prev, cur := locs[i-1], locs[i]
		if strings.TrimSpace(input[prev[1]:cur[0]]) != "" {
			continue
		}
		if !strings.EqualFold(input[prev[0]:prev[1]], input[cur[0]:cur[1]]) {
			continue
		}
		builder.WriteString(input[last:prev[1]])
		last = cur[1]
	}
	if last == 0 {
		return input, false
	}
	builder.WriteString(input[last:])
	return builder.String(), true
}

func tidySpacing(text string) string {
	text = extraSpaces.ReplaceAllString(text, " ")
	text = spaceBefore.ReplaceAllString(text, "$1")
	text = leadingComma.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

func parseDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var builder strings.Builder
	escaped := false
	for index := start; index < len(line); index++ {
		char := line[index]
		switch {
		case escaped:
			// An escaped delimiter is literal; other escapes belong to the regex.
			if char != delim {
				builder.WriteByte('\\')
			}
			builder.WriteByte(char)
			escaped = false
		case char == '\\':
			escaped = true
		case char == delim:
			return builder.String(), index + 1, nil
		default:
			builder.WriteByte(char)
		}
	}
	return "", 0, errors.New("unterminated expression")
}

func isAlphaNumericOrSpace(char byte) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == ' ' || char == '\t'
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	return runes[len(runes)-1]
}
