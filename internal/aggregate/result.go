// Package aggregate groups scanned records into named buckets.
package aggregate

import (
	"slices"
	"strings"

	"github.com/starford/orgstate/internal/models"
)

// Result maps bucket names to ordered records. It is built fresh for every
// invocation and read-only once Aggregate returns.
type Result struct {
	buckets map[string][]models.Record
}

func newResult() *Result {
	return &Result{buckets: make(map[string][]models.Record)}
}

// Bucket returns the records in name, or nil when the bucket does not exist.
func (r *Result) Bucket(name string) []models.Record {
	return r.buckets[name]
}

// Has reports whether name exists, even if empty.
func (r *Result) Has(name string) bool {
	_, ok := r.buckets[name]
	return ok
}

// Len returns the size of bucket name.
func (r *Result) Len(name string) int {
	return len(r.buckets[name])
}

// Names returns every bucket name in sorted order.
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.buckets))
	for n := range r.buckets {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Keys returns the sorted suffixes of bucket names under prefix:
// Keys("tags") on {tags.go, tags.org} gives [go org].
func (r *Result) Keys(prefix string) []string {
	p := prefix + "."
	var keys []string
	for n := range r.buckets {
		if k, ok := strings.CutPrefix(n, p); ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Counts returns bucket sizes under prefix keyed by suffix.
func (r *Result) Counts(prefix string) map[string]int {
	out := make(map[string]int)
	for _, k := range r.Keys(prefix) {
		out[k] = len(r.buckets[prefix+"."+k])
	}
	return out
}

func (r *Result) ensure(name string) {
	if _, ok := r.buckets[name]; !ok {
		r.buckets[name] = []models.Record{}
	}
}

func (r *Result) add(name string, rec models.Record) {
	r.buckets[name] = append(r.buckets[name], rec)
}

func (r *Result) sortBucket(name string, cmp func(a, b models.Record) int) {
	slices.SortStableFunc(r.buckets[name], func(a, b models.Record) int {
		if c := cmp(a, b); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
}

func byPath(a, b models.Record) int { return strings.Compare(a.Path, b.Path) }
