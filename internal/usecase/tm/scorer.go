package tm

// Scorer rates how close a candidate source is to the query source,
// 0 (unrelated) to 100 (identical). Exact equality is handled by the
// engine itself and always wins at 100.
type Scorer interface {
	Score(query, candidate string) int
}

// LevenshteinScorer scores by normalized edit distance.
type LevenshteinScorer struct{}

func (LevenshteinScorer) Score(query, candidate string) int {
	if query == candidate {
		return 100
	}
	a := []rune(query)
	b := []rune(candidate)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	dist := levenshtein(a, b)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return (longest - dist) * 100 / longest
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
