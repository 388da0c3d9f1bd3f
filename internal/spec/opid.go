package spec

import (
	"strings"
	"unicode"
)

// SynthesizeOperationID derives a stable identifier for an operation that
// declares no operationId of its own. The algorithm is a published contract:
// selection keys are re-derived independently by consumers, so any change
// here silently breaks tool filtering.
//
// The method is capitalized after lowercasing; each path segment is
// capitalized; a {var} segment becomes "By" + Capitalize(var). The root path
// yields just the method word.
//
//	SynthesizeOperationID("get", "/users/{id}") == "GetUsersById"
func SynthesizeOperationID(method, pathTemplate string) string {
	var b strings.Builder
	b.WriteString(capitalize(strings.ToLower(strings.TrimSpace(method))))
	for _, seg := range strings.Split(pathTemplate, "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			b.WriteString("By")
			b.WriteString(capitalize(seg[1 : len(seg)-1]))
			continue
		}
		b.WriteString(capitalize(seg))
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
