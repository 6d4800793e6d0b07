package commands

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"voicedesk/internal/domain"
)

// ErrCommandAmbiguous reports that no table entry matched the transcript.
var ErrCommandAmbiguous = errors.New("no command phrase matched")

// DefaultDebounceWindow absorbs the same utterance being re-detected across
// consecutive loop iterations.
const DefaultDebounceWindow = 3 * time.Second

// maxTargetWords bounds how many words after a prefix phrase may name a target.
const maxTargetWords = 4

// SimilarityFunc decides whether next repeats previous. Both are normalized.
type SimilarityFunc func(previous string, next string) bool

// PrefixSimilarity treats equal phrases, or one being a prefix of the other,
// as the same command.
func PrefixSimilarity(previous string, next string) bool {
	if previous == "" || next == "" {
		return false
	}
	return strings.HasPrefix(previous, next) || strings.HasPrefix(next, previous)
}

// Verdict is the outcome of Acquire.
type Verdict string

const (
	VerdictAccepted   Verdict = "accepted"
	VerdictNoMatch    Verdict = "no_match"
	VerdictSuppressed Verdict = "suppressed"
	VerdictDebounced  Verdict = "debounced"
)

// Option customizes a Detector.
type Option func(*Detector)

func WithDebounceWindow(window time.Duration) Option {
	return func(d *Detector) {
		if window >= 0 {
			d.window = window
		}
	}
}

func WithSimilarity(similar SimilarityFunc) Option {
	return func(d *Detector) {
		if similar != nil {
			d.similar = similar
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

type compiledEntry struct {
	phrase []string
	action domain.ActionKind
	prefix bool
	target string
}

// Detector finds trigger phrases at the end of a live transcript. It also
// owns the executing guard and the debounce memory, so a detection and the
// decision to run it happen under one lock.
type Detector struct {
	entries  []compiledEntry
	wakeWord string
	apps     map[string]string
	window   time.Duration
	similar  SimilarityFunc
	now      func() time.Time

	mu         sync.Mutex
	executing  bool
	lastPhrase string
	lastAt     time.Time
}

func NewDetector(table Table, opts ...Option) (*Detector, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	entries := lo.Map(table.Commands, func(entry Entry, _ int) compiledEntry {
		return compiledEntry{
			phrase: normalizeWords(entry.Phrase),
			action: domain.ParseActionKind(entry.Action),
			prefix: entry.Prefix,
			target: strings.TrimSpace(entry.Target),
		}
	})
	// Longer phrases win so "send and stop" is not read as a shorter entry.
	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].phrase) > len(entries[j].phrase)
	})

	apps := make(map[string]string, len(table.Apps)*2)
	for alias, app := range table.Apps {
		apps[Normalize(alias)] = app
		apps[Normalize(app)] = app
	}

	d := &Detector{
		entries:  entries,
		wakeWord: Normalize(table.WakeWord),
		apps:     apps,
		window:   DefaultDebounceWindow,
		similar:  PrefixSimilarity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Match looks for a command at the end of text without touching any guard.
func (d *Detector) Match(text string) (domain.DetectedCommand, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return domain.DetectedCommand{}, ErrCommandAmbiguous
	}

	for _, entry := range d.entries {
		start, end, target, ok := d.matchEntry(tokens, entry)
		if !ok {
			continue
		}
		if d.wakeWord != "" {
			if start == 0 || tokens[start-1].norm != d.wakeWord {
				continue
			}
			start--
		}

		return domain.DetectedCommand{
			TriggerPhrase: joinTokens(tokens[start:end]),
			TextBefore:    trimBefore(text[:tokens[start].start]),
			Action:        entry.action,
			Target:        target,
		}, nil
	}
	return domain.DetectedCommand{}, ErrCommandAmbiguous
}

// Acquire matches text and, when the command may run, marks the detector as
// executing and remembers the phrase for debouncing. Callers must Release
// after an accepted command finishes.
func (d *Detector) Acquire(text string) (domain.DetectedCommand, Verdict) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.executing {
		return domain.DetectedCommand{}, VerdictSuppressed
	}

	command, err := d.Match(text)
	if err != nil {
		return domain.DetectedCommand{}, VerdictNoMatch
	}

	now := d.now()
	if d.lastPhrase != "" && now.Sub(d.lastAt) < d.window && d.similar(d.lastPhrase, command.TriggerPhrase) {
		return command, VerdictDebounced
	}

	d.executing = true
	d.lastPhrase = command.TriggerPhrase
	d.lastAt = now
	return command, VerdictAccepted
}

// Release clears the executing guard.
func (d *Detector) Release() {
	d.mu.Lock()
	d.executing = false
	d.mu.Unlock()
}

// Executing reports whether an accepted command has not been released yet.
func (d *Detector) Executing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.executing
}

// Reset forgets debounce memory and the executing guard, for a new session.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.executing = false
	d.lastPhrase = ""
	d.lastAt = time.Time{}
	d.mu.Unlock()
}

// StripTrailing removes every trigger phrase the detector recognises from
// the end of text.
func (d *Detector) StripTrailing(text string) string {
	for {
		command, err := d.Match(text)
		if err != nil {
			return strings.TrimSpace(text)
		}
		text = command.TextBefore
	}
}

func (d *Detector) matchEntry(tokens []token, entry compiledEntry) (int, int, string, bool) {
	n := len(entry.phrase)
	if n == 0 || len(tokens) < n {
		return 0, 0, "", false
	}

	if !entry.prefix {
		start := len(tokens) - n
		if !tokensEqual(tokens[start:], entry.phrase) {
			return 0, 0, "", false
		}
		return start, len(tokens), entry.target, true
	}

	for start := len(tokens) - n - 1; start >= 0 && len(tokens)-start-n <= maxTargetWords; start-- {
		if !tokensEqual(tokens[start:start+n], entry.phrase) {
			continue
		}
		if entry.target != "" {
			if target, ok := d.resolveTarget(tokens[start+n:]); ok && target == entry.target {
				return start, len(tokens), target, true
			}
			continue
		}
		if target, ok := d.resolveTarget(tokens[start+n:]); ok {
			return start, len(tokens), target, true
		}
	}
	return 0, 0, "", false
}

func (d *Detector) resolveTarget(tokens []token) (string, bool) {
	words := lo.Map(tokens, func(t token, _ int) string { return t.norm })
	if len(words) > 1 && words[0] == "the" {
		words = words[1:]
	}
	app, ok := d.apps[strings.Join(words, " ")]
	return app, ok
}

// StripCommand removes trailing occurrences of phrase from text. Applying it
// to its own output is a no-op.
func StripCommand(phrase string, text string) string {
	words := normalizeWords(phrase)
	if len(words) == 0 {
		return strings.TrimSpace(text)
	}

	for {
		tokens := tokenize(text)
		if len(tokens) < len(words) {
			break
		}
		start := len(tokens) - len(words)
		if !tokensEqual(tokens[start:], words) {
			break
		}
		text = trimBefore(text[:tokens[start].start])
	}
	return strings.TrimSpace(text)
}

// TrimLeadingWords returns what follows prefix in text when text starts with
// the same words, ignoring case and punctuation.
func TrimLeadingWords(text string, prefix string) (string, bool) {
	words := normalizeWords(prefix)
	tokens := tokenize(text)
	if len(words) == 0 || len(tokens) < len(words) || !tokensEqual(tokens[:len(words)], words) {
		return text, false
	}
	if len(tokens) == len(words) {
		return "", true
	}
	return text[tokens[len(words)].start:], true
}

// Normalize lowercases text and reduces it to space separated words.
func Normalize(text string) string {
	return strings.Join(normalizeWords(text), " ")
}

type token struct {
	norm  string
	start int
	end   int
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

func tokenize(text string) []token {
	locs := wordPattern.FindAllStringIndex(text, -1)
	tokens := make([]token, 0, len(locs))
	for _, loc := range locs {
		tokens = append(tokens, token{
			norm:  strings.ToLower(text[loc[0]:loc[1]]),
			start: loc[0],
			end:   loc[1],
		})
	}
	return tokens
}

func normalizeWords(text string) []string {
	return lo.Map(tokenize(text), func(t token, _ int) string { return t.norm })
}

func tokensEqual(tokens []token, words []string) bool {
	if len(tokens) != len(words) {
		return false
	}
	for i := range tokens {
		if tokens[i].norm != words[i] {
			return false
		}
	}
	return true
}

func joinTokens(tokens []token) string {
	return strings.Join(lo.Map(tokens, func(t token, _ int) string { return t.norm }), " ")
}

// trimBefore trims whitespace and the separators people say right before a
// command, keeping sentence punctuation.
func trimBefore(text string) string {
	return strings.TrimRight(strings.TrimSpace(text), " \t\n,;:-–—")
}
