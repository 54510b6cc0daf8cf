package util

import "testing"

func TestSetFingerprint(t *testing.T) {
	got := SetFingerprint([]string{"b.pdf", "a.pdf"})
	if got != SetFingerprint([]string{"a.pdf", "b.pdf", "a.pdf"}) {
		t.Fatalf("expected order- and duplicate-independent hash, got %s", got)
	}
	if got == SetFingerprint([]string{"a.pdf"}) {
		t.Fatalf("different sets must hash differently")
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}
