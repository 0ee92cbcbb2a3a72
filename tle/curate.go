package tle

import (
	"regexp"
	"strings"
	"time"
)

var catalogLine = regexp.MustCompile(`(?m)^1 +(\d+)`)

// GroupLines splits raw lines into consecutive name/line1/line2 triples.
// A trailing incomplete group is dropped.
func GroupLines(lines []string) [][3]string {
	n := len(lines) / 3
	groups := make([][3]string, 0, n)
	for i := 0; i < n; i++ {
		groups = append(groups, [3]string{lines[i*3], lines[i*3+1], lines[i*3+2]})
	}
	return groups
}

// GroupByName collects element sets sharing the same name. Each group keeps
// input order.
func GroupByName(sets []ElementSet) map[string][]ElementSet {
	grouped := make(map[string][]ElementSet)
	for _, s := range sets {
		grouped[s.Name] = append(grouped[s.Name], s)
	}
	return grouped
}

// Deduplicate keeps one element set per catalog number: the one whose epoch
// is closest to reference, the later epoch on a tie. Results are ordered by
// the first appearance of each catalog number.
func Deduplicate(sets []ElementSet, reference time.Time) []ElementSet {
	best := make(map[int]int, len(sets))
	order := make([]int, 0, len(sets))

	for i, s := range sets {
		j, seen := best[s.NoradID]
		if !seen {
			best[s.NoradID] = i
			order = append(order, s.NoradID)
			continue
		}
		if closer(s.Epoch, sets[j].Epoch, reference) {
			best[s.NoradID] = i
		}
	}

	out := make([]ElementSet, 0, len(order))
	for _, id := range order {
		out = append(out, sets[best[id]])
	}
	return out
}

func closer(candidate, current, reference time.Time) bool {
	dc := absDuration(candidate.Sub(reference))
	dk := absDuration(current.Sub(reference))
	if dc != dk {
		return dc < dk
	}
	return candidate.After(current)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// ExtractNoradIDs returns the catalog numbers of every "1 NNNNN" line in
// raw TLE text, in order of first appearance.
func ExtractNoradIDs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	matches := catalogLine.FindAllStringSubmatch(text, -1)

	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		ids = append(ids, m[1])
	}
	return ids
}

// JoinIDs renders catalog numbers the way the Space-Track query expects them.
func JoinIDs(ids []string) string {
	return strings.Join(ids, ",")
}

// Format renders element sets back into newline terminated 3LE text.
func Format(sets []ElementSet) string {
	var b strings.Builder
	for _, s := range sets {
		for _, l := range s.Lines() {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
