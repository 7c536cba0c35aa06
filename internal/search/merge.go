package search

import (
	"strings"

	"github.com/spaolacci/murmur3"
)

// dedupKey identifies a result within one source for one query: a hash of
// the source id and the lowercased name. It is not unique across sources.
func dedupKey(id, name string) uint64 {
	h := murmur3.New64()
	h.Write([]byte(id))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(name)))
	return h.Sum64()
}

// Dedup drops repeated results, keeping the first occurrence. It never
// returns nil and is idempotent.
func Dedup(results []Result) []Result {
	out := make([]Result, 0, len(results))
	seen := make(map[uint64]struct{}, len(results))
	for _, r := range results {
		k := dedupKey(r.ID, r.Name)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Merge deduplicates the internal and external sets independently and
// concatenates them, internal first. Cross-source duplicates are kept.
func Merge(internal, external []Result) []Result {
	in := Dedup(internal)
	ex := Dedup(external)
	out := make([]Result, 0, len(in)+len(ex))
	out = append(out, in...)
	return append(out, ex...)
}
