package assignment

import "sort"

// GradeSummary aggregates a user's cached grades for one course.
type GradeSummary struct {
	CourseID   string  `json:"course_id"`
	CourseName string  `json:"course_name"`
	Total      int     `json:"total"`
	Submitted  int     `json:"submitted"`
	Graded     int     `json:"graded"`
	AveragePct float64 `json:"average_percentage"`
	Health     float64 `json:"health"`
}

// CourseHealth scores a course 0-100 from its cached assignments: the average
// graded percentage scaled by the submission rate. A course with no
// assignments, or nothing graded yet, scores 0.
func CourseHealth(asgs []Assignment) float64 {
	if len(asgs) == 0 {
		return 0
	}
	var submitted, graded int
	var pctSum float64
	for _, a := range asgs {
		if a.Submitted() {
			submitted++
		}
		if a.Graded() {
			graded++
			pctSum += a.Percentage()
		}
	}
	if graded == 0 {
		return 0
	}
	avg := pctSum / float64(graded)
	completion := float64(submitted) / float64(len(asgs))
	return avg * completion
}

// Summarize groups assignments by course and computes per-course summaries,
// ordered by course id for stable output. Course names are left as cached;
// callers resolve them through the name mapper.
func Summarize(asgs []Assignment) []GradeSummary {
	byCourse := make(map[string][]Assignment)
	for _, a := range asgs {
		byCourse[a.CourseID] = append(byCourse[a.CourseID], a)
	}

	ids := make([]string, 0, len(byCourse))
	for id := range byCourse {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	summaries := make([]GradeSummary, 0, len(ids))
	for _, id := range ids {
		group := byCourse[id]
		sum := GradeSummary{CourseID: id, Total: len(group)}
		var pctSum float64
		for _, a := range group {
			if sum.CourseName == "" && a.CourseName != "" {
				sum.CourseName = a.CourseName
			}
			if a.Submitted() {
				sum.Submitted++
			}
			if a.Graded() {
				sum.Graded++
				pctSum += a.Percentage()
			}
		}
		if sum.Graded > 0 {
			sum.AveragePct = pctSum / float64(sum.Graded)
		}
		sum.Health = CourseHealth(group)
		summaries = append(summaries, sum)
	}
	return summaries
}

// OverallAverage is the mean of per-course averages over courses that have at
// least one graded assignment; 0 when none do.
func OverallAverage(summaries []GradeSummary) float64 {
	var n int
	var sum float64
	for _, s := range summaries {
		if s.Graded > 0 {
			n++
			sum += s.AveragePct
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
