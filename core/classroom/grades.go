package classroom

import (
	"math"
	"strconv"
	"strings"
)

// ScoreSummary is the per-student grade breakdown. Chapter scores are each on
// a 0–10 scale; Total is chapters + midterm + final + special, rounded to one
// decimal place.
type ScoreSummary struct {
	ChapScores [NumChapters]float64 `json:"chapScores"`
	Midterm    float64              `json:"midterm"`
	Final      float64              `json:"final"`
	Special    float64              `json:"special"`
	Total      float64              `json:"total"`
}

// CalcScores aggregates a student's scores over the given tasks. Scores of
// accum tasks are split evenly across the task's declared chapters, and each
// chapter's earned/max ratio is scaled to 0–10; chapter numbers outside
// 1..NumChapters are ignored.
func CalcScores(studentID ID, tasks []Task, scores []Score) ScoreSummary {
	var (
		earned [NumChapters]float64
		max    [NumChapters]float64
		sum    ScoreSummary
	)

	for _, task := range tasks {
		var earnedScore float64
		for _, sc := range scores {
			if sc.StudentID == studentID && sc.TaskID == task.ID {
				earnedScore = float64(sc.Score)
				break
			}
		}
		maxScore := float64(task.MaxScore)

		switch task.Category {
		case CategoryAccum:
			chapters := splitChapters(task.Chapter)
			if len(chapters) == 0 || maxScore <= 0 {
				continue
			}
			perChapter := earnedScore / float64(len(chapters))
			maxPerChapter := maxScore / float64(len(chapters))
			for _, ch := range chapters {
				if ch >= 1 && ch <= NumChapters {
					earned[ch-1] += perChapter
					max[ch-1] += maxPerChapter
				}
			}
		case CategoryMidterm:
			sum.Midterm += earnedScore
		case CategoryFinal:
			sum.Final += earnedScore
		case CategorySpecial:
			sum.Special += earnedScore
		}
	}

	var chapterTotal float64
	for i := range earned {
		if max[i] > 0 {
			sum.ChapScores[i] = round1(earned[i] / max[i] * 10)
		}
		chapterTotal += sum.ChapScores[i]
	}
	sum.Total = round1(chapterTotal + sum.Midterm + sum.Final + sum.Special)
	return sum
}

// GradePoint maps a 0–100 total to a discrete grade point.
func GradePoint(total float64) float64 {
	switch {
	case math.IsNaN(total):
		return 0
	case total >= 80:
		return 4
	case total >= 75:
		return 3.5
	case total >= 70:
		return 3
	case total >= 65:
		return 2.5
	case total >= 60:
		return 2
	case total >= 55:
		return 1.5
	case total >= 50:
		return 1
	default:
		return 0
	}
}

func splitChapters(chapter string) []int {
	if chapter == "" {
		return nil
	}
	parts := strings.Split(chapter, ",")
	chapters := make([]int, 0, len(parts))
	for _, p := range parts {
		// unparsable entries still count toward the per-chapter split,
		// they just never accumulate anywhere
		n, _ := strconv.Atoi(strings.TrimSpace(p))
		chapters = append(chapters, n)
	}
	return chapters
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
