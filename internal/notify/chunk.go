package notify

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkLimit is the per-message character budget used when splitting
// an over-length text. Kept below the platform's hard 4096-character cap to
// leave room for part headers and markup.
const DefaultChunkLimit = 3800

// SplitMessage splits text into ordered chunks of at most limit characters.
// It cuts at paragraph boundaries (blank lines) first, then at line breaks,
// and only hard-cuts inside a line when a single unbreakable run exceeds
// the limit. Empty chunks are dropped and surrounding whitespace trimmed.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	appendRun := func(s string) {
		cur.WriteString(s)
		curLen += utf8.RuneCountInString(s)
	}

	for _, block := range strings.Split(text, "\n\n") {
		block2 := block + "\n\n"
		blockLen := utf8.RuneCountInString(block2)
		if blockLen <= limit-curLen {
			appendRun(block2)
			continue
		}

		// A block that fits a fresh chunk stays whole; otherwise fall back
		// to line-level splitting.
		flush()
		if blockLen <= limit {
			appendRun(block2)
			continue
		}

		for _, line := range strings.Split(block2, "\n") {
			line2 := line + "\n"
			n := utf8.RuneCountInString(line2)
			if n <= limit-curLen {
				appendRun(line2)
				continue
			}

			// Start a fresh chunk before resorting to a hard cut.
			flush()
			if n <= limit {
				appendRun(line2)
				continue
			}

			// Hard character cut for a line that cannot fit whole.
			runes := []rune(line2)
			for len(runes) > 0 {
				take := limit - curLen
				if take > len(runes) {
					take = len(runes)
				}
				appendRun(string(runes[:take]))
				runes = runes[take:]
				if curLen >= limit {
					flush()
				}
			}
		}

		if curLen >= limit {
			flush()
		}
	}
	flush()

	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
