package token

import "testing"

func TestEstimateFastEmpty(t *testing.T) {
	if got := EstimateFast(""); got != 0 {
		t.Errorf("EstimateFast(\"\") = %d, want 0", got)
	}
	if got := EstimateFast("   \n\t "); got != 0 {
		t.Errorf("EstimateFast(whitespace) = %d, want 0", got)
	}
}

func TestEstimateFastBounds(t *testing.T) {
	// Never below the word count, never zero for non-empty input.
	if got := EstimateFast("a"); got != 1 {
		t.Errorf("EstimateFast(\"a\") = %d, want 1", got)
	}
	text := "one two three four five"
	if got := EstimateFast(text); got < 5 {
		t.Errorf("EstimateFast(%q) = %d, want >= 5 words", text, got)
	}
}

func TestCountNonZero(t *testing.T) {
	// Count may use tiktoken or the fallback depending on the environment;
	// either way a short sentence is a handful of tokens, not zero and not
	// one per character.
	text := "hello world, this is a short sentence"
	got := Count(text)
	if got == 0 {
		t.Fatal("Count returned 0 for non-empty text")
	}
	if got > len(text) {
		t.Errorf("Count(%q) = %d, suspiciously high", text, got)
	}
}
