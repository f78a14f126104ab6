package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/docforge/internal/llm"
)

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// ParseResponse pulls the requested fields out of a model response. It
// tries the whole response as JSON, then a fenced block, then the first
// {...} span (accepting single-quoted keys). Fields that cannot be found
// come back as "".
func ParseResponse(resp string, fields []string) map[string]string {
	out := emptyFields(fields)
	obj := decodeObject(resp)
	if obj == nil {
		return out
	}

	for _, f := range fields {
		if v, ok := obj[f]; ok {
			out[f] = stringify(v)
		}
	}
	// A single requested field may come back under another name.
	if len(fields) == 1 && len(obj) == 1 && out[fields[0]] == "" {
		for _, v := range obj {
			out[fields[0]] = stringify(v)
		}
	}
	return out
}

func decodeObject(resp string) map[string]any {
	candidates := []string{llm.StripCodeBlock(resp)}
	if m := fencedJSON.FindStringSubmatch(resp); len(m) > 1 {
		candidates = append(candidates, m[1])
	}
	if m := bareObject.FindString(resp); m != "" {
		candidates = append(candidates, m, strings.ReplaceAll(m, "'", `"`))
	}
	for _, c := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(c), &obj); err == nil {
			return obj
		}
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprint(t)
	}
}

func emptyFields(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f] = ""
	}
	return out
}

// groundedRatio is the share of a value's letters that must occur in the
// source for the value to count as taken from it.
const groundedRatio = 0.8

// Ungrounded returns the fields whose non-empty values are not found in
// source, either verbatim or by character overlap.
func Ungrounded(extracted map[string]string, source string) []string {
	var bad []string
	for field, v := range extracted {
		if v == "" || strings.Contains(source, v) {
			continue
		}
		if overlap(v, source) < groundedRatio {
			bad = append(bad, field)
		}
	}
	return bad
}

func overlap(v, source string) float64 {
	seen := make(map[rune]bool)
	for _, r := range source {
		seen[r] = true
	}
	total, hit := 0, 0
	for _, r := range v {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		total++
		if seen[r] {
			hit++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(hit) / float64(total)
}
