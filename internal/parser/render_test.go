package parser

import (
	"strings"
	"testing"

	"github.com/starford/orgstate/internal/models"
)

func reparse(t *testing.T, meta models.Metadata) models.Metadata {
	t.Helper()
	r, err := Parse([]byte(Render(meta, nil) + "\nbody\n"))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	return r.Metadata
}

func TestRender_RoundTrip(t *testing.T) {
	blocks := []string{
		"---\ntype: task\nstatus: active\ntags: [a, b]\n---\n",
		"---\ntitle: \"null\"\nempty: ''\nnothing: null\n---\n",
		"---\nlist: [\"\", ' spaced ', '\"q\"', x]\nwrapped: '\"inner\"'\n---\n",
		"---\nbracketed: \"[not a list]\"\ncolon: a: b\nhash: #tag\n---\n",
		"---\nowner:\n  name: Ada\nnotes: >\n  folded\n  text\n---\n",
		"---\ntags:\n  - \"a, b\"\n  - c\n  - \"k: v\"\n---\n",
		"---\nremind-at: 2026-10-18T09:00:00Z\nblocked-by: []\n---\n",
	}
	for _, blk := range blocks {
		first, err := Parse([]byte(blk))
		if err != nil {
			t.Fatalf("parse %q: %v", blk, err)
		}
		second := reparse(t, first.Metadata)
		if !first.Metadata.Equal(second) {
			t.Errorf("round trip changed metadata\nblock: %q\nfirst:  %#v\nsecond: %#v\nrendered: %q",
				blk, first.Metadata, second, Render(first.Metadata, nil))
		}
	}
}

func TestRender_KeyOrder(t *testing.T) {
	meta := models.Metadata{
		"zeta":   models.String("z"),
		"status": models.String("active"),
		"type":   models.String("task"),
		"alpha":  models.String("a"),
	}
	got := Render(meta, []string{"type", "status", "missing"})
	want := "---\ntype: task\nstatus: active\nalpha: a\nzeta: z\n---\n"
	if got != want {
		t.Errorf("render =\n%s\nwant\n%s", got, want)
	}
}

func TestRewrite_KeepsBody(t *testing.T) {
	r, _ := Parse([]byte("---\nstatus: pending\n---\n# Call\nDetails\n"))
	meta := r.Metadata.Clone()
	meta["status"] = models.String("completed")
	out := string(Rewrite(meta, []string{"status"}, r.Body))
	if !strings.HasSuffix(out, "# Call\nDetails\n") {
		t.Errorf("body lost: %q", out)
	}
	again, _ := Parse([]byte(out))
	if again.Metadata.Str("status") != "completed" {
		t.Errorf("status = %q", again.Metadata.Str("status"))
	}
	if r.Metadata.Str("status") != "pending" {
		t.Error("original metadata must not change")
	}
}
