package notify

import (
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"
)

func TestSplitMessageShortTextIsSingleChunk(t *testing.T) {
	text := "Hello\n\nWorld"
	parts := SplitMessage(text, 100)
	if len(parts) != 1 {
		t.Fatalf("Expected a single chunk, got %d", len(parts))
	}
	if parts[0] != text {
		t.Errorf("Expected text unchanged, got %q", parts[0])
	}
}

func TestSplitMessageEmptyText(t *testing.T) {
	if parts := SplitMessage("", 100); len(parts) != 0 {
		t.Errorf("Expected no chunks for empty text, got %v", parts)
	}
	if parts := SplitMessage("\n\n\n\n", 100); len(parts) != 0 {
		t.Errorf("Expected no chunks for whitespace-only text, got %v", parts)
	}
}

func TestSplitMessagePrefersParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("a", 60)
	text := para + "\n\n" + para + "\n\n" + para
	parts := SplitMessage(text, 100)

	if len(parts) != 3 {
		t.Fatalf("Expected 3 chunks, got %d: %v", len(parts), parts)
	}
	for i, p := range parts {
		if p != para {
			t.Errorf("Chunk %d: expected a whole paragraph, got %q", i, p)
		}
	}
}

func TestSplitMessageFallsBackToLines(t *testing.T) {
	// One paragraph of three lines, each fitting a chunk but no two together.
	line := strings.Repeat("b", 60)
	text := line + "\n" + line + "\n" + line
	parts := SplitMessage(text, 100)

	if len(parts) != 3 {
		t.Fatalf("Expected 3 chunks, got %d: %v", len(parts), parts)
	}
	for _, p := range parts {
		if p != line {
			t.Errorf("Expected whole lines per chunk, got %q", p)
		}
	}
}

func TestSplitMessageHardCutsUnbreakableRuns(t *testing.T) {
	text := strings.Repeat("x", 250)
	parts := SplitMessage(text, 100)

	if len(parts) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(parts))
	}
	if got := strings.Join(parts, ""); got != text {
		t.Errorf("Expected hard cut to preserve every character")
	}
}

func TestSplitMessageLongDigest(t *testing.T) {
	// A realistic oversized digest: many task lines with blank lines between.
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("• Review the quarterly infrastructure budget and report back\n")
		b.WriteString("  🔗 https://tracker.example.com/tasks/4711\n\n")
	}
	text := strings.TrimSpace(b.String())

	parts := SplitMessage(text, DefaultChunkLimit)
	if len(parts) < 2 {
		t.Fatalf("Expected the digest to be split, got %d chunk(s)", len(parts))
	}
	for i, p := range parts {
		if utf8.RuneCountInString(p) > DefaultChunkLimit {
			t.Errorf("Chunk %d exceeds limit: %d runes", i, utf8.RuneCountInString(p))
		}
	}
}

func TestSplitMessageProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(10, 200).Draw(t, "limit")

		// Build text from words, newlines and blank lines, including
		// multi-byte runes to exercise rune counting.
		pieces := rapid.SliceOfN(rapid.SampledFrom([]string{
			"alpha", "beta", "longer-word-here", "задача", "🧩", " ",
			"\n", "\n\n", strings.Repeat("z", 30),
		}), 0, 60).Draw(t, "pieces")
		text := strings.Join(pieces, "")

		parts := SplitMessage(text, limit)

		for _, p := range parts {
			if utf8.RuneCountInString(p) > limit {
				t.Fatalf("chunk exceeds limit %d: %d runes", limit, utf8.RuneCountInString(p))
			}
			if strings.TrimSpace(p) == "" {
				t.Fatalf("empty chunk produced")
			}
			if p != strings.TrimSpace(p) {
				t.Fatalf("chunk not trimmed: %q", p)
			}
		}

		// No non-whitespace content may be lost or reordered.
		squeeze := func(s string) string {
			return strings.Join(strings.Fields(s), "")
		}
		if squeeze(strings.Join(parts, "")) != squeeze(text) {
			t.Fatalf("content changed across the split")
		}
	})
}
