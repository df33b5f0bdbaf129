package phrases

import (
	"slices"
	"strings"
	"sync"
	"testing"
)

func TestDefaultPhrases(t *testing.T) {
	m := NewMatcher()

	tests := []struct {
		text    string
		wake    bool
		goodbye bool
	}{
		{text: "Hey Marco", wake: true},
		{text: "ok WAKE UP MARCO please", wake: true},
		{text: "what's the weather like"},
		{text: "Goodbye for now", goodbye: true},
		{text: "alright, goodnight", goodbye: true},
		{text: "marco, goodbye", wake: true, goodbye: true},
		{text: ""},
	}

	for _, tt := range tests {
		if got := m.DetectWake(tt.text); got != tt.wake {
			t.Errorf("DetectWake(%q) = %v, want %v", tt.text, got, tt.wake)
		}
		if got := m.DetectGoodbye(tt.text); got != tt.goodbye {
			t.Errorf("DetectGoodbye(%q) = %v, want %v", tt.text, got, tt.goodbye)
		}
	}
}

func TestDetectWakeMatchesAnyCasingOfAnyPhrase(t *testing.T) {
	m := NewMatcher()

	for _, phrase := range m.WakePhrases() {
		for _, text := range []string{phrase, "uh " + phrase + " hello", strings.ToUpper(phrase)} {
			if !m.DetectWake(text) {
				t.Fatalf("expected %q to match wake phrase %q", text, phrase)
			}
		}
	}
}

func TestAddPhraseNormalizesAndRejectsDuplicates(t *testing.T) {
	m := NewMatcher()

	if !m.AddWakePhrase("  Hello Computer ") {
		t.Fatalf("expected new phrase to be added")
	}
	if m.AddWakePhrase("hello computer") {
		t.Fatalf("expected duplicate phrase to be rejected")
	}
	if m.AddWakePhrase("   ") {
		t.Fatalf("expected blank phrase to be rejected")
	}
	if !m.DetectWake("HELLO COMPUTER, are you there") {
		t.Fatalf("expected added phrase to be detected")
	}
	if !m.AddGoodbyePhrase("see you") || !m.DetectGoodbye("See you later") {
		t.Fatalf("expected added goodbye phrase to be detected")
	}
}

func TestRemovingAllPhrasesDisablesDetection(t *testing.T) {
	m := NewMatcher()

	for _, phrase := range m.GoodbyePhrases() {
		if !m.RemoveGoodbyePhrase(phrase) {
			t.Fatalf("expected %q to be removed", phrase)
		}
	}
	if m.RemoveGoodbyePhrase("goodbye") {
		t.Fatalf("expected removing an unknown phrase to report false")
	}
	if m.DetectGoodbye("goodbye bye shutdown goodnight") {
		t.Fatalf("expected no goodbye detection without phrases")
	}
}

func TestPhraseListsAreCopies(t *testing.T) {
	m := NewMatcher(WithWakePhrases("Jarvis", "jarvis", ""))

	phrases := m.WakePhrases()
	if !slices.Equal(phrases, []string{"jarvis"}) {
		t.Fatalf("unexpected phrases %v", phrases)
	}

	phrases[0] = "changed"
	if !m.DetectWake("jarvis") {
		t.Fatalf("expected internal phrases to be unaffected by caller changes")
	}
}

func TestMatcherIsSafeForConcurrentUse(t *testing.T) {
	m := NewMatcher()

	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.AddWakePhrase("computer")
			m.RemoveWakePhrase("computer")
		}()
		go func() {
			defer wg.Done()
			_ = m.DetectWake("hey marco")
			_ = m.WakePhrases()
		}()
	}
	wg.Wait()

	if !m.DetectWake("hey marco") {
		t.Fatalf("expected default phrases to survive concurrent edits")
	}
}

