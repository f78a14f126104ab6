package rebuild

import (
	"regexp"
	"strings"
	"unicode"
)

// BlockKind is how a block of generated text is rendered.
type BlockKind int

const (
	BlockBody BlockKind = iota
	BlockHeading
	BlockOrdered
	BlockBullet
)

var headingPrefixes = []string{"第", "一、", "二、", "三、", "四、", "五、", "六、", "七、", "八、", "九、", "十、"}

// SplitBlocks splits generated text on blank lines, trimming each block
// and dropping empty ones.
func SplitBlocks(text string) []string {
	var out []string
	for _, b := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Classify decides how a block renders. Lists win over headings. A
// leading "1." to "3." only marks a list when no digit follows it.
func Classify(block string) BlockKind {
	switch {
	case orderedStart(block):
		return BlockOrdered
	case strings.HasPrefix(block, "-") || strings.HasPrefix(block, "·"):
		return BlockBullet
	}
	for _, p := range headingPrefixes {
		if strings.HasPrefix(block, p) {
			return BlockHeading
		}
	}
	return BlockBody
}

func orderedStart(block string) bool {
	if len(block) < 2 || block[0] < '1' || block[0] > '3' || block[1] != '.' {
		return false
	}
	return len(block) == 2 || block[2] < '0' || block[2] > '9'
}

var numberMarker = regexp.MustCompile(`\d+\.`)

// OrderedItems splits a numbered block into "N. item" strings. A marker
// only counts at the start of the block or after whitespace or CJK
// punctuation, and never when a digit follows, so "3.5" stays intact.
func OrderedItems(block string) []string {
	var starts []int
	for _, loc := range numberMarker.FindAllStringIndex(block, -1) {
		if loc[1] < len(block) && block[loc[1]] >= '0' && block[loc[1]] <= '9' {
			continue
		}
		if loc[0] > 0 {
			prev := []rune(block[:loc[0]])
			r := prev[len(prev)-1]
			if !unicode.IsSpace(r) && !unicode.Is(unicode.Han, r) && !unicode.IsPunct(r) {
				continue
			}
		}
		starts = append(starts, loc[0])
	}
	if len(starts) == 0 {
		return []string{block}
	}

	var items []string
	for i, s := range starts {
		end := len(block)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		seg := block[s:end]
		dot := strings.IndexByte(seg, '.')
		marker, rest := seg[:dot+1], strings.TrimSpace(seg[dot+1:])
		if rest != "" {
			items = append(items, marker+" "+rest)
		}
	}
	return items
}

// BulletItems splits a bulleted block into "- item" strings, one per
// marker. Markers are recognized at line starts so hyphenated words and
// dates survive.
func BulletItems(block string) []string {
	var items []string
	var cur []string
	flush := func() {
		if s := strings.TrimSpace(strings.Join(cur, " ")); s != "" {
			items = append(items, "- "+s)
		}
		cur = nil
	}
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := cutBullet(line); ok {
			flush()
			cur = append(cur, rest)
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return items
}

func cutBullet(line string) (string, bool) {
	for _, m := range []string{"-", "·", "•"} {
		if rest, ok := strings.CutPrefix(line, m); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return line, false
}
