// Package keyword recognizes the spoken end keyword that closes a command.
//
// STT rarely hears the keyword cleanly ("over" comes back as "over.",
// "Over!", "ovur" or worse), so matching proceeds in three stages:
//
//  1. Exact comparison, case-insensitive, after trailing punctuation is
//     stripped.
//  2. Phonetic comparison: if any Double Metaphone code of the word overlaps
//     a code of the keyword, a lenient Jaro-Winkler threshold applies.
//  3. Fuzzy fallback: pure Jaro-Winkler similarity against a stricter
//     threshold.
//
// The fuzzy stages trade a small false-accept rate for not leaving the
// speaker stranded mid-command; both thresholds are tunable.
package keyword

import (
	"errors"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// DefaultKeyword closes a command when spoken as the final word.
	DefaultKeyword = "over"

	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// trailingPunct is stripped from word boundaries before comparison.
	trailingPunct = ".,!?"
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-overlapping word to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when the
// word shares no phonetic code with the keyword. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher recognizes one end keyword. All methods are safe for concurrent
// use; the Matcher is read-only after construction.
type Matcher struct {
	keyword           string
	codes             map[string]struct{}
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] for the given keyword. The keyword must be a
// single non-empty word.
func New(kw string, opts ...Option) (*Matcher, error) {
	kw = strings.ToLower(strings.TrimSpace(kw))
	if kw == "" {
		return nil, errors.New("keyword: keyword must not be empty")
	}
	if strings.ContainsRune(kw, ' ') {
		return nil, errors.New("keyword: keyword must be a single word")
	}

	m := &Matcher{
		keyword:           kw,
		codes:             metaphoneCodes(kw),
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Keyword returns the configured keyword in canonical lower-case form.
func (m *Matcher) Keyword() string { return m.keyword }

// MatchWord reports whether a single spoken word counts as the end keyword.
// Case and trailing punctuation are ignored.
func (m *Matcher) MatchWord(word string) bool {
	w := strings.ToLower(strings.Trim(strings.TrimSpace(word), trailingPunct))
	if w == "" {
		return false
	}
	if w == m.keyword {
		return true
	}

	score := matchr.JaroWinkler(w, m.keyword, false)
	if codesOverlap(metaphoneCodes(w), m.codes) {
		return score >= m.phoneticThreshold
	}
	return score >= m.fuzzyThreshold
}

// EndsWith reports whether the final word of text is the end keyword. This
// is the in-capture termination test: a keyword mid-sentence followed by
// more words does not end the command.
func (m *Matcher) EndsWith(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	return m.MatchWord(fields[len(fields)-1])
}

// TrimTail removes a trailing end keyword from a final transcript and tidies
// the remainder: whitespace is collapsed and trailing punctuation dropped.
// found reports whether a keyword was removed.
//
//	TrimTail("open the garage, over.") = ("open the garage", true)
//	TrimTail("open the garage")        = ("open the garage", false)
func (m *Matcher) TrimTail(text string) (trimmed string, found bool) {
	fields := strings.Fields(text)
	if len(fields) > 0 && m.MatchWord(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
		found = true
	}
	trimmed = strings.Join(fields, " ")
	trimmed = strings.TrimSpace(strings.TrimRight(trimmed, trailingPunct))
	return trimmed, found
}

// metaphoneCodes returns the non-empty Double Metaphone codes of a word.
func metaphoneCodes(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
