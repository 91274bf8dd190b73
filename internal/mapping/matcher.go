package mapping

import "math"

// Cosine returns the cosine similarity of two vectors: dot(a,b)/(|a||b|).
// Defined as 0 when the lengths differ or either vector has zero norm, so
// the matcher never divides by zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Match is the best canonical target for one source row.
type Match struct {
	TargetIndex int
	Score       float64
	Matched     bool // false when the best score is below the threshold
}

// BestMatches computes, for each source embedding, the target with maximum
// cosine similarity. A target is accepted only when its similarity meets
// threshold; otherwise the match is marked unaccepted (manual review) with
// the raw score preserved for audit. Ties keep the lowest target index in
// canonical vocabulary order (strict > scan), which makes results
// deterministic and stable.
func BestMatches(sources, targets [][]float32, threshold float64) []Match {
	matches := make([]Match, len(sources))
	for i, src := range sources {
		best := -1
		bestScore := math.Inf(-1)
		for j, tgt := range targets {
			if score := Cosine(src, tgt); score > bestScore {
				best = j
				bestScore = score
			}
		}
		if best < 0 {
			matches[i] = Match{TargetIndex: -1}
			continue
		}
		matches[i] = Match{
			TargetIndex: best,
			Score:       bestScore,
			Matched:     bestScore >= threshold,
		}
	}
	return matches
}
