package domain

import "github.com/agext/levenshtein"

// Severity penalties applied when computing a quality score.
// Rejected (or still-open) issues cost full weight, resolved issues
// roughly half.
var levParams = levenshtein.NewParams()

var (
	rejectedPenalty = map[IssueSeverity]int{
		SeverityHigh:   10,
		SeverityMedium: 3,
		SeverityLow:    1,
	}
	resolvedPenalty = map[IssueSeverity]int{
		SeverityHigh:   5,
		SeverityMedium: 2,
		SeverityLow:    1,
	}
)

// QualityScore computes the deterministic 0-100 score for a finalized unit.
// Issues still open or in progress count as rejected; openCount reports how
// many were penalized that way so the caller can warn about them.
func QualityScore(issues []Issue) (score int, openCount int) {
	score = 100
	for i := range issues {
		issue := &issues[i]
		switch issue.Status {
		case IssueStatusResolved:
			score -= resolvedPenalty[issue.Severity]
		case IssueStatusRejected:
			score -= rejectedPenalty[issue.Severity]
		case IssueStatusOpen, IssueStatusInProgress:
			score -= rejectedPenalty[issue.Severity]
			openCount++
		}
	}
	if score < 0 {
		score = 0
	}
	return score, openCount
}

// ModificationDegree is the normalized edit distance between two versions of
// a translation: min(1, lev(a,b) / max(len(a), len(b))). Identical strings
// score 0; two empty strings score 0.
func ModificationDegree(original, modified string) float64 {
	if original == modified {
		return 0
	}
	a, b := []rune(original), []rune(modified)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	degree := float64(levenshtein.Distance(original, modified, levParams)) / float64(maxLen)
	if degree > 1 {
		degree = 1
	}
	return degree
}

// SimilarityScore maps string similarity onto the 0-100 TM match scale.
// 100 means the strings are identical.
func SimilarityScore(a, b string) int {
	if a == b {
		return 100
	}
	return int(levenshtein.Similarity(a, b, levParams) * 100)
}
