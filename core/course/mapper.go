package course

import (
	"strings"
	"unicode"

	"github.com/trezcool/classmirror/core"
)

// unknownSentinels are cached names that carry no information; matching is
// case-insensitive.
var unknownSentinels = map[string]struct{}{
	"unknown course": {},
	"unknown":        {},
	"n/a":            {},
	"null":           {},
	"undefined":      {},
	"":               {},
}

// NameResolver resolves display names for course ids against a fixed set of
// user overrides. Build one per request from the queried mapping set; it holds
// no shared state.
type NameResolver struct {
	mappings map[string]string
}

func NewNameResolver(mm []NameMapping) *NameResolver {
	mappings := make(map[string]string, len(mm))
	for _, m := range mm {
		mappings[m.CourseID] = m.Name
	}
	return &NameResolver{mappings: mappings}
}

func (r *NameResolver) Resolve(courseID, cachedName string) string {
	return ResolveName(courseID, cachedName, r.mappings)
}

// ResolveName returns a display name for a course following the fallback
// chain: user mapping, then the cached name unless it is an unknown sentinel,
// then a name synthesized from the id. It is deterministic, side-effect-free
// and always returns a non-empty string.
func ResolveName(courseID, cachedName string, mappings map[string]string) string {
	if name, ok := mappings[courseID]; ok && name != "" {
		return name
	}
	if _, unknown := unknownSentinels[core.CleanString(cachedName, true)]; !unknown {
		return cachedName
	}
	return synthesizeName(courseID)
}

func synthesizeName(courseID string) string {
	if courseID == "" {
		return "Unknown Course"
	}
	if isAllDigits(courseID) {
		return "Course " + courseID
	}

	words := splitIdentifier(courseID)
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// splitIdentifier splits on "-"/"_" separators and camelCase boundaries.
func splitIdentifier(s string) []string {
	var words []string
	var cur []rune
	runes := []rune(s)
	for i, r := range runes {
		if r == '-' || r == '_' || r == ' ' {
			if len(cur) > 0 {
				words = append(words, string(cur))
				cur = cur[:0]
			}
			continue
		}
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
			if len(cur) > 0 {
				words = append(words, string(cur))
				cur = cur[:0]
			}
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return words
}

func titleWord(w string) string {
	runes := []rune(w)
	if len(runes) == 0 {
		return w
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
