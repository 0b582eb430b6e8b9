package qa

import "strings"

// Needles derives the evidence keywords for a question: the scoring token
// set, or the whole normalized question when no token qualifies, so a short
// question can still highlight lines.
func Needles(question string) []string {
	if toks := Tokens(question); len(toks) > 0 {
		return toks
	}
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return nil
	}
	return []string{q}
}

// MatchingLines scans source for lines containing any needle as a
// case-insensitive substring. It returns 1-based line numbers in ascending
// order without duplicates, and the literal text of each matching line,
// index-aligned. Display decoration only; ranking is unaffected.
func MatchingLines(source string, needles []string) ([]int, []string) {
	if source == "" || len(needles) == 0 {
		return nil, nil
	}

	var nums []int
	var contents []string
	for i, line := range strings.Split(source, "\n") {
		lower := strings.ToLower(line)
		for _, n := range needles {
			if n != "" && strings.Contains(lower, n) {
				nums = append(nums, i+1)
				contents = append(contents, line)
				break
			}
		}
	}
	return nums, contents
}
