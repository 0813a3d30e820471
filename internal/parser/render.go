package parser

import (
	"slices"
	"strings"

	"github.com/starford/orgstate/internal/models"
)

// Render writes meta as a canonical front-block, including both delimiter
// lines. Keys listed in order come first; the rest follow alphabetically.
//
// Values are quoted where needed so that parsing the output yields meta again
// for every map Parse can produce.
func Render(meta models.Metadata, order []string) string {
	keys := make([]string, 0, len(meta))
	seen := make(map[string]struct{}, len(order))
	for _, k := range order {
		if _, ok := meta[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	var rest []string
	for k := range meta {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	keys = append(keys, rest...)

	var b strings.Builder
	b.WriteString(delim + "\n")
	for _, k := range keys {
		v := renderValue(meta[k])
		b.WriteString(k)
		b.WriteByte(':')
		if v != "" && v[0] != '\n' {
			b.WriteByte(' ')
		}
		b.WriteString(v)
		b.WriteByte('\n')
	}
	b.WriteString(delim + "\n")
	return b.String()
}

// Rewrite replaces the front-block of a document, keeping its body.
func Rewrite(meta models.Metadata, order []string, body string) []byte {
	return []byte(Render(meta, order) + "\n" + body)
}

func renderValue(v models.Value) string {
	if items, ok := v.Items(); ok {
		if slices.ContainsFunc(items, func(it string) bool { return strings.Contains(it, ",") }) {
			// Inline lists split on commas, so such items need the block form.
			var b strings.Builder
			for _, it := range items {
				special := it == "" || strings.Contains(it, ": ") ||
					strings.HasPrefix(it, "- ") || strings.HasPrefix(it, "[")
				b.WriteString("\n  - " + quoteIfNeeded(it, special))
			}
			return b.String()
		}
		quoted := make([]string, len(items))
		for i, it := range items {
			quoted[i] = quoteIfNeeded(it, it == "")
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	}
	if s, ok := v.Str(); ok {
		// Opaque multi-line values are written back verbatim.
		if strings.Contains(s, "\n") {
			return s
		}
		special := s == "" || strings.EqualFold(s, "null") ||
			(len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']')
		return quoteIfNeeded(s, special)
	}
	return "null"
}

func quoteIfNeeded(s string, force bool) string {
	if !force && s == strings.TrimSpace(s) && unquote(s) == s {
		return s
	}
	q := `"`
	if strings.HasPrefix(s, `"`) {
		q = `'`
	}
	return q + s + q
}
