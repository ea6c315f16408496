package importpipe

import "strings"

// fuzzyThreshold is the minimum similarity ratio the fallback column mapper
// accepts before leaving a source column unmapped (SPEC_FULL.md §12.9).
const fuzzyThreshold = 0.60

// levenshtein returns the edit distance between a and b.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ar); i++ {
		curr[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// similarityRatio returns a normalized similarity in [0,1], matching the
// common ratio = (maxLen - distance) / maxLen definition (spec pre-grounded
// via SPEC_FULL.md §12.9 as a hand-rolled helper, not a library import).
func similarityRatio(a, b string) float64 {
	a = normalizeHeader(a)
	b = normalizeHeader(b)
	if a == "" && b == "" {
		return 1
	}
	maxLen := len([]rune(a))
	if bl := len([]rune(b)); bl > maxLen {
		maxLen = bl
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// normalizeHeader lowercases and collapses separators so "Date Of Joining",
// "date_of_joining" and "date-of-joining" compare equal.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}

// bestFuzzyMatch finds the target field in candidates most similar to
// source, returning ("", 0) if nothing clears fuzzyThreshold.
func bestFuzzyMatch(source string, candidates []string) (string, float64) {
	bestField := ""
	bestRatio := 0.0
	for _, c := range candidates {
		r := similarityRatio(source, c)
		if r > bestRatio {
			bestRatio = r
			bestField = c
		}
	}
	if bestRatio < fuzzyThreshold {
		return "", bestRatio
	}
	return bestField, bestRatio
}

// fuzzyMapColumns maps every header to its best-matching target field (or
// leaves it unmapped), greedily and without reuse — once a target field is
// claimed by a closer-matching source column it is removed from the
// candidate pool for the remaining headers.
func fuzzyMapColumns(headers []string, targetFields []string) map[string]*string {
	remaining := append([]string{}, targetFields...)
	mapping := make(map[string]*string, len(headers))

	type pendingMatch struct {
		header string
		field  string
		ratio  float64
	}
	var matches []pendingMatch
	for _, h := range headers {
		field, ratio := bestFuzzyMatch(h, remaining)
		if field == "" {
			mapping[h] = nil
			continue
		}
		matches = append(matches, pendingMatch{header: h, field: field, ratio: ratio})
	}

	// Resolve greedily by descending confidence so the strongest matches
	// claim their target field first.
	for len(matches) > 0 {
		bestIdx := 0
		for i, m := range matches {
			if m.ratio > matches[bestIdx].ratio {
				bestIdx = i
			}
		}
		winner := matches[bestIdx]
		field := winner.field
		mapping[winner.header] = &field
		remaining = removeString(remaining, field)

		rest := matches[:0]
		for i, m := range matches {
			if i == bestIdx {
				continue
			}
			rest = append(rest, m)
		}
		matches = rest

		// Re-score headers that lost their claimed field to the winner.
		for i, m := range matches {
			if m.field != field {
				continue
			}
			newField, newRatio := bestFuzzyMatch(m.header, remaining)
			if newField == "" {
				mapping[m.header] = nil
				matches[i].ratio = -1
				continue
			}
			matches[i].field = newField
			matches[i].ratio = newRatio
		}
		filtered := matches[:0]
		for _, m := range matches {
			if m.ratio >= 0 {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}

	return mapping
}

func removeString(s []string, target string) []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
