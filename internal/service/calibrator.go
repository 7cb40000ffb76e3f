package service

import (
	"math"

	"github.com/quickquiz/quickquiz/internal/model"
)

// MarkDistribution splits totalMarks across questions proportionally to
// difficulty weight (easy 1, medium 2, hard 3), rounding each share to one
// decimal. The last question absorbs the rounding remainder so the shares
// always sum to totalMarks exactly.
func MarkDistribution(difficulties []model.Difficulty, totalMarks float64) []float64 {
	if len(difficulties) == 0 {
		return nil
	}

	totalWeight := 0
	for _, d := range difficulties {
		totalWeight += d.Weight()
	}

	marks := make([]float64, len(difficulties))
	allocated := 0.0
	for i, d := range difficulties {
		share := round1(totalMarks * float64(d.Weight()) / float64(totalWeight))
		marks[i] = share
		if i < len(marks)-1 {
			allocated += share
		}
	}
	marks[len(marks)-1] = round1(totalMarks - allocated)
	return marks
}

// Recalibrate assigns freshly distributed marks to the questions in place.
func Recalibrate(questions []model.Question, totalMarks float64) {
	difficulties := make([]model.Difficulty, len(questions))
	for i, q := range questions {
		difficulties[i] = q.Difficulty
	}
	for i, m := range MarkDistribution(difficulties, totalMarks) {
		questions[i].Marks = m
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
