package domain

import "strings"

// CauseOther is the fallback category.
const CauseOther = "other"

// CategorizeCause maps free-text DOE-417 cause descriptions onto a category
// by keyword containment. Categories are tried in table order.
func CategorizeCause(cause string, categories []CauseCategory) string {
	lower := strings.ToLower(cause)
	if lower == "" {
		return CauseOther
	}
	for _, c := range categories {
		for _, kw := range c.Keywords {
			if strings.Contains(lower, kw) {
				return c.Category
			}
		}
	}
	return CauseOther
}

// SummaryBucket folds a category into one of the summary buckets; anything
// not in priority (fuel, cyber) is counted as other.
func SummaryBucket(category string, priority []string) string {
	for _, p := range priority {
		if p == category {
			return category
		}
	}
	return CauseOther
}
