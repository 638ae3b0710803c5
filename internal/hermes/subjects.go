package hermes

import "strings"

const (
	SubjectComparisonUpsertedAll = "priority.project.*.comparison.upserted"

	StreamName   = "PRIORITY_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectComparisonUpserted(projectID string) string {
	return "priority.project." + projectID + ".comparison.upserted"
}
func SubjectResultsComputed(projectID string) string {
	return "priority.project." + projectID + ".results.computed"
}
func SubjectBudgetOptimized(projectID string) string {
	return "priority.project." + projectID + ".budget.optimized"
}

// ProjectFromSubject extracts the project id from a priority.project.<id>.*
// subject, or returns "" when the subject has another shape.
func ProjectFromSubject(subject string) string {
	parts := strings.Split(subject, ".")
	if len(parts) < 4 || parts[0] != "priority" || parts[1] != "project" {
		return ""
	}
	return parts[2]
}
