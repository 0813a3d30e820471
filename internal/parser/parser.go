// Package parser extracts the front-block, wikilinks, tags and title from
// Markdown documents.
//
// The front-block grammar is deliberately restricted. A block opens with a
// "---" line and closes with the next "---" line; each "key: value" line in
// between is read with these rules, in order of precedence:
//
//	[a, b, "c"]   ordered list, elements trimmed and unquoted
//	null, empty   null
//	anything else string, one layer of symmetric quotes stripped
//
// An empty value followed by indented "- item" lines is a block list. Any
// other continuation (nested maps, multi-line scalars, anchors) is kept as an
// opaque string so richer documents never fail to parse.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/orgstate/internal/apperr"
	"github.com/starford/orgstate/internal/models"
)

const delim = "---"

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Result holds the output of parsing a Markdown document.
type Result struct {
	Metadata models.Metadata
	Body     string
	Links    []string
	Tags     []string
	// Title is the first "# " heading of the body, or "" if there is none.
	Title string
}

// Parse splits data into front-block metadata and body.
//
// Parse always returns a usable Result. An unterminated block yields empty
// metadata, the full text as body and an error wrapping
// apperr.ErrMalformedFrontBlock, so callers can record the problem and carry on.
func Parse(data []byte) (*Result, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	meta, body, err := splitFrontBlock(text)

	return &Result{
		Metadata: meta,
		Body:     body,
		Links:    ExtractLinks(body),
		Tags:     NormalizeTags(meta.Get("tags")),
		Title:    DeriveTitle(body),
	}, err
}

// splitFrontBlock separates the block between the leading delimiters from the
// body. Without an opening delimiter the whole text is body.
func splitFrontBlock(text string) (models.Metadata, string, error) {
	lines := strings.SplitAfter(text, "\n")

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start == len(lines) || !isDelim(lines[start]) {
		return models.Metadata{}, text, nil
	}

	for end := start + 1; end < len(lines); end++ {
		if !isDelim(lines[end]) {
			continue
		}
		meta := parseBlock(lines[start+1 : end])
		body := strings.TrimLeft(strings.Join(lines[end+1:], ""), "\r\n")
		return meta, body, nil
	}

	return models.Metadata{}, text, fmt.Errorf("parser: no closing %q: %w", delim, apperr.ErrMalformedFrontBlock)
}

func isDelim(line string) bool {
	return strings.TrimRight(line, " \t\r\n") == delim
}

func parseBlock(lines []string) models.Metadata {
	meta := models.Metadata{}
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r\n")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || isContinuation(line) {
			continue
		}
		key, raw, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		var cont []string
		for i+1 < len(lines) && isContinuation(strings.TrimRight(lines[i+1], "\r\n")) {
			i++
			cont = append(cont, strings.TrimRight(lines[i], "\r\n"))
		}
		meta[key] = parseValue(strings.TrimSpace(raw), cont)
	}
	return meta
}

// isContinuation reports whether line belongs to the previous key: indented
// non-blank lines and bare "- item" sequence entries.
func isContinuation(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	if line[0] == ' ' || line[0] == '\t' {
		return true
	}
	return line == "-" || strings.HasPrefix(line, "- ")
}

func parseValue(raw string, cont []string) models.Value {
	if len(cont) == 0 {
		return parseScalar(raw)
	}
	if raw == "" {
		if items, ok := blockList(cont); ok {
			return models.List(items...)
		}
	}
	return models.String(raw + "\n" + strings.Join(cont, "\n"))
}

// blockList reads "- item" lines. Items that look like nested maps or lists
// disqualify the whole block.
func blockList(cont []string) ([]string, bool) {
	items := make([]string, 0, len(cont))
	for _, c := range cont {
		t := strings.TrimSpace(c)
		if t != "-" && !strings.HasPrefix(t, "- ") {
			return nil, false
		}
		item := strings.TrimSpace(strings.TrimPrefix(t, "-"))
		if unq := unquote(item); unq != item {
			items = append(items, unq)
			continue
		}
		if strings.Contains(item, ": ") || strings.HasPrefix(item, "- ") || strings.HasPrefix(item, "[") {
			return nil, false
		}
		items = append(items, item)
	}
	return items, true
}

func parseScalar(raw string) models.Value {
	if len(raw) >= 2 && raw[0] == '[' && raw[len(raw)-1] == ']' {
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		if inner == "" {
			return models.List()
		}
		parts := strings.Split(inner, ",")
		items := make([]string, len(parts))
		for i, p := range parts {
			items[i] = unquote(strings.TrimSpace(p))
		}
		return models.List(items...)
	}
	if raw == "" || strings.EqualFold(raw, "null") {
		return models.Null()
	}
	return models.String(unquote(raw))
}

// unquote strips one layer of matching single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// ExtractLinks returns deduplicated wikilink targets, normalising aliases.
func ExtractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		// [[Target|Alias]] and [[Target\|Alias]] (escaped inside tables) → Target.
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(strings.TrimSuffix(target, `\`))
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// DeriveTitle returns the first H1 heading of body, or "".
func DeriveTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
