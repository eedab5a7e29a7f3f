package importer

import (
	"strconv"
	"strings"
)

// CanonicalizeHeaders de-duplicates repeated column headers by suffixing an
// ascending occurrence counter, so two "title" columns become "title" and
// "title_2". Output is positionally aligned with the input columns and always
// collision-free, whatever the input looks like.
func CanonicalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	counts := make(map[string]int, len(headers))
	used := make(map[string]bool, len(headers))
	for i, h := range headers {
		base := strings.TrimSpace(h)
		name := base
		counts[base]++
		if n := counts[base]; n > 1 {
			name = base + "_" + strconv.Itoa(n)
		}
		// Guard against input that already contains a suffixed twin
		// (e.g. "title", "title", "title_2").
		for used[name] {
			counts[base]++
			name = base + "_" + strconv.Itoa(counts[base])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
