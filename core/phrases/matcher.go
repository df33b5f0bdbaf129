// Package phrases detects wake and goodbye phrases in recognized speech.
package phrases

import (
	"slices"
	"strings"
	"sync"
)

var (
	DefaultWakePhrases    = []string{"wake up marco", "hey marco", "marco"}
	DefaultGoodbyePhrases = []string{"goodbye", "bye", "shutdown", "goodnight"}
)

// Matcher matches transcripts against wake and goodbye phrases. A phrase
// matches when it appears anywhere in the transcript, ignoring case.
type Matcher struct {
	mu             sync.RWMutex
	wakePhrases    []string
	goodbyePhrases []string
}

type MatcherOption func(*Matcher)

// WithWakePhrases replaces the default wake phrases.
func WithWakePhrases(phrases ...string) MatcherOption {
	return func(m *Matcher) { m.wakePhrases = normalizeAll(phrases) }
}

// WithGoodbyePhrases replaces the default goodbye phrases.
func WithGoodbyePhrases(phrases ...string) MatcherOption {
	return func(m *Matcher) { m.goodbyePhrases = normalizeAll(phrases) }
}

func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		wakePhrases:    normalizeAll(DefaultWakePhrases),
		goodbyePhrases: normalizeAll(DefaultGoodbyePhrases),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Matcher) DetectWake(text string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return containsAny(text, m.wakePhrases)
}

func (m *Matcher) DetectGoodbye(text string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return containsAny(text, m.goodbyePhrases)
}

// AddWakePhrase reports whether the phrase was added. Blank and already known
// phrases are ignored.
func (m *Matcher) AddWakePhrase(phrase string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return add(&m.wakePhrases, phrase)
}

func (m *Matcher) RemoveWakePhrase(phrase string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return remove(&m.wakePhrases, phrase)
}

func (m *Matcher) AddGoodbyePhrase(phrase string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return add(&m.goodbyePhrases, phrase)
}

func (m *Matcher) RemoveGoodbyePhrase(phrase string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return remove(&m.goodbyePhrases, phrase)
}

func (m *Matcher) WakePhrases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.wakePhrases)
}

func (m *Matcher) GoodbyePhrases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.goodbyePhrases)
}

func normalize(phrase string) string {
	return strings.ToLower(strings.TrimSpace(phrase))
}

func normalizeAll(phrases []string) []string {
	normalized := []string{}
	for _, phrase := range phrases {
		add(&normalized, phrase)
	}
	return normalized
}

func add(phrases *[]string, phrase string) bool {
	phrase = normalize(phrase)
	if phrase == "" || slices.Contains(*phrases, phrase) {
		return false
	}
	*phrases = append(*phrases, phrase)
	return true
}

func remove(phrases *[]string, phrase string) bool {
	phrase = normalize(phrase)
	i := slices.Index(*phrases, phrase)
	if i < 0 {
		return false
	}
	*phrases = slices.Delete(*phrases, i, i+1)
	return true
}

func containsAny(text string, phrases []string) bool {
	text = strings.ToLower(text)
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
