package core

import "sort"

const (
	// ThresholdFloor is the lowest threshold SelectThreshold returns
	ThresholdFloor = 0.65

	feedbackBranchMin  = 10
	feedbackPercentile = 0.75
	rankDivisor        = 7
)

// SelectThreshold computes the score cutoff for the brief.
// With at least ten feedback-bearing messages it takes the 75th percentile of
// their scores; otherwise the score at rank max(1, n/7) of the whole population.
// The result is never below ThresholdFloor.
func SelectThreshold(population []ScoredMessage, index FeedbackIndex) float64 {
	if len(population) == 0 {
		return ThresholdFloor
	}

	var withFeedback []float64
	for _, m := range population {
		if index.Has(m.ID) {
			withFeedback = append(withFeedback, m.Score)
		}
	}

	var candidate float64
	if len(withFeedback) >= feedbackBranchMin {
		sort.Float64s(withFeedback)
		candidate = withFeedback[int(float64(len(withFeedback))*feedbackPercentile)]
	} else {
		scores := make([]float64, len(population))
		for i, m := range population {
			scores[i] = m.Score
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

		pos := len(scores) / rankDivisor
		if pos < 1 {
			pos = 1
		}
		if pos >= len(scores) {
			pos = len(scores) - 1
		}
		candidate = scores[pos]
	}

	if candidate < ThresholdFloor {
		return ThresholdFloor
	}
	return candidate
}
