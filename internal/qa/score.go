package qa

import (
	"sort"
	"strings"

	"github.com/repobrief/repobrief/pkg/models"
)

// Scoring weights. File names and summaries are cheap high-precision
// signals; raw source text is high-recall but noisy, hence the lowest
// per-match weight.
const (
	questionInNameWeight    = 5
	questionInSummaryWeight = 3
	questionInSourceWeight  = 2
	tokenInNameWeight       = 2
	tokenInSummaryWeight    = 1
	tokenInSourceWeight     = 0.5

	// Tokens this short are too common to carry signal.
	minTokenLen = 4
)

// Tokens splits a question into lowercase whitespace-delimited words and
// keeps those long enough to be meaningful search terms. The same token set
// drives scoring and matching-line evidence.
func Tokens(question string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		if len(w) >= minTokenLen {
			out = append(out, w)
		}
	}
	return out
}

// Score rates a file's relevance to a question with lexical, case-insensitive
// matching. A zero score keeps the file eligible; files are never excluded
// outright, only ranked. An absent source body is treated as empty.
func Score(question string, f models.FileRecord) float64 {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return 0
	}

	name := strings.ToLower(f.FileName)
	summary := strings.ToLower(f.Summary)
	source := strings.ToLower(f.SourceCode)

	var score float64
	if strings.Contains(name, q) {
		score += questionInNameWeight
	}
	if strings.Contains(summary, q) {
		score += questionInSummaryWeight
	}
	if strings.Contains(source, q) {
		score += questionInSourceWeight
	}

	for _, w := range Tokens(q) {
		if strings.Contains(name, w) {
			score += tokenInNameWeight
		}
		if strings.Contains(summary, w) {
			score += tokenInSummaryWeight
		}
		if strings.Contains(source, w) {
			score += tokenInSourceWeight
		}
	}
	return score
}

// ScoreAll scores every candidate in retrieval order.
func ScoreAll(question string, files []models.FileRecord) []models.ScoredFile {
	scored := make([]models.ScoredFile, 0, len(files))
	for _, f := range files {
		scored = append(scored, models.ScoredFile{File: f, Score: Score(question, f)})
	}
	return scored
}

// TopK returns the k best-scoring files, highest first. The sort is stable so
// ties keep their original retrieval order and repeated calls on unchanged
// data stay deterministic.
func TopK(scored []models.ScoredFile, k int) []models.FileRecord {
	ranked := make([]models.ScoredFile, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]models.FileRecord, 0, k)
	for _, s := range ranked[:k] {
		out = append(out, s.File)
	}
	return out
}
