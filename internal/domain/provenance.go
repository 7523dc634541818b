package domain

// reportedVarianceThreshold separates Form 861 data from the estimate
// generator. Reported state averages differ widely; estimates cluster
// around per-state bases.
const reportedVarianceThreshold = 3000

// IsReportedReliability guesses whether state SAIDI values came from Form 861
// rather than the estimate generator, from their population variance.
//
// This is a display heuristic for the dataSource label. A wrong answer
// mislabels provenance but never changes any number in the output.
func IsReportedReliability(saidi []float64) bool {
	if len(saidi) <= 10 {
		return false
	}
	var sum float64
	for _, v := range saidi {
		sum += v
	}
	mean := sum / float64(len(saidi))
	var sq float64
	for _, v := range saidi {
		sq += (v - mean) * (v - mean)
	}
	return sq/float64(len(saidi)) > reportedVarianceThreshold
}
