package telegram

import (
	"strings"
	"testing"

	logx "github.com/oslabbie/frigate-alerts/pkg/logx"
)

func TestSplitTextShortPassthrough(t *testing.T) {
	t.Parallel()

	got := splitText("hello", textLimit)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("splitText = %v", got)
	}
}

func TestSplitTextPrefersNewlineBoundaries(t *testing.T) {
	t.Parallel()

	lines := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		lines = append(lines, strings.Repeat("x", 90))
	}
	text := strings.Join(lines, "\n")

	chunks := splitText(text, 1000)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 1000 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
		// Splitting on newlines keeps every line intact.
		for _, line := range strings.Split(c, "\n") {
			if len(line) != 90 {
				t.Fatalf("chunk %d contains a torn line of %d runes", i, len(line))
			}
		}
	}
}

func TestSplitTextHandlesUnbrokenRuns(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("y", 2500)
	chunks := splitText(text, 1000)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	if total != 2500 {
		t.Fatalf("reassembled length = %d, want 2500", total)
	}
}

func TestNewRejectsEmptyToken(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatal("empty token accepted")
	}
}
