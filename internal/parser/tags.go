package parser

import (
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/orgstate/internal/models"
)

var tagSplitRe = regexp.MustCompile(`[,\s]+`)

// NormalizeTags turns a raw "tags" value into an ordered, duplicate-free set
// of lowercase tags without a leading "#". A string is split on commas and
// whitespace; list elements are trimmed but not split. The result depends only
// on v: "#Foo, bar" and ["Foo", "bar"] both give ["foo", "bar"].
func NormalizeTags(v models.Value) []string {
	var raw []string
	if s, ok := v.Str(); ok {
		raw = tagSplitRe.Split(s, -1)
	} else {
		raw = v.Strings()
	}

	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, t := range raw {
		t = strings.ToLower(strings.TrimLeft(strings.TrimSpace(t), "#"))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Humanize turns a slug into a title: "weekly-review" → "Weekly Review".
func Humanize(slug string) string {
	s := strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	return cases.Title(language.Und).String(strings.Join(strings.Fields(s), " "))
}

// FallbackTitle derives a title from a slash-separated path. A README takes
// its directory's name.
func FallbackTitle(p string) string {
	base := path.Base(p)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if strings.EqualFold(stem, "readme") {
		if dir := path.Dir(p); dir != "." && dir != "/" {
			stem = path.Base(dir)
		}
	}
	return Humanize(stem)
}
