package chunker

import (
	"regexp"
	"strings"
)

// Mode selects how Segment splits text.
type Mode string

const (
	ModeParagraph Mode = "paragraph"
	ModeSentence  Mode = "sentence"
	ModeSemantic  Mode = "semantic"
)

// ParseMode maps a user-supplied name to a Mode. Unknown names fall back to
// paragraph mode.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSentence:
		return ModeSentence
	case ModeSemantic:
		return ModeSemantic
	default:
		return ModeParagraph
	}
}

// Segment is one piece of segmented text.
type Segment struct {
	Text     string `json:"text"`
	Type     Mode   `json:"type"`
	Position int    `json:"position"`
}

// SegmentText splits text by mode and returns the pieces in order.
func SegmentText(text string, mode Mode) []Segment {
	var parts []string
	switch mode {
	case ModeSentence:
		parts = SplitSentences(text)
	case ModeSemantic:
		parts = splitSemantic(text)
	default:
		mode = ModeParagraph
		parts = SplitParagraphs(text)
	}
	out := make([]Segment, 0, len(parts))
	for i, p := range parts {
		out = append(out, Segment{Text: p, Type: mode, Position: i})
	}
	return out
}

// SplitParagraphs splits on blank lines and drops empty pieces.
func SplitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}

// SplitSentences splits after Chinese or Western terminal punctuation. A
// Western '.' only ends a sentence when followed by whitespace or the end of
// text, so decimals and abbreviations like "3.5" stay intact.
func SplitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for i, r := range runes {
		cur.WriteRune(r)
		if !isSentenceEnd(r) {
			continue
		}
		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(runes) && !isSpace(runes[i+1]) {
				continue
			}
		}
		flush()
	}
	flush()
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

var headingLine = regexp.MustCompile(`^(第[一二三四五六七八九十百零\d]+[章节部分条]|[一二三四五六七八九十]+、|\d+、\s*\S|\d+\.\s+\S)`)

// IsHeadingLine reports whether a line opens a numbered section, e.g.
// "一、", "第三章" or "2. ".
func IsHeadingLine(line string) bool {
	return headingLine.MatchString(strings.TrimSpace(line))
}

// splitSemantic groups lines under the nearest preceding heading line.
func splitSemantic(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		if s := strings.TrimSpace(strings.Join(cur, "\n")); s != "" {
			out = append(out, s)
		}
		cur = cur[:0]
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if IsHeadingLine(line) {
			flush()
		}
		cur = append(cur, line)
	}
	flush()
	return out
}
