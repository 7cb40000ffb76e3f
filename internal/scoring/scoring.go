// Package scoring grades a single answer against its question. It is pure:
// no storage, no clock, and it never fails — a malformed stored answer is
// scored incorrect so that grading can never abort a submission.
package scoring

import (
	"math"

	"github.com/quickquiz/quickquiz/internal/model"
)

// NumericTolerance absorbs float serialization noise on nat answers.
const NumericTolerance = 0.01

type Result struct {
	IsCorrect     bool
	MarksObtained float64
}

// Score grades the stored selected-answer JSON against the question. A nil or
// undecodable selection, or a correct_answer whose shape does not match the
// question type, yields incorrect with zero marks.
func Score(q *model.Question, selectedRaw *string) Result {
	if selectedRaw == nil {
		return Result{}
	}
	selected, err := model.ParseAnswer(*selectedRaw)
	if err != nil {
		return Result{}
	}
	correct, err := model.ParseAnswer(q.CorrectAnswer)
	if err != nil {
		return Result{}
	}

	var ok bool
	switch q.QuestionType {
	case model.QuestionMCQ:
		ok = scoreMCQ(correct, selected)
	case model.QuestionMSQ:
		ok = scoreMSQ(correct, selected)
	case model.QuestionNAT:
		ok = scoreNAT(correct, selected)
	}
	if !ok {
		return Result{}
	}
	return Result{IsCorrect: true, MarksObtained: q.Marks}
}

func scoreMCQ(correct, selected model.AnswerValue) bool {
	if correct.Kind != model.AnswerSingle || selected.Kind != model.AnswerSingle {
		return false
	}
	return selected.Single == correct.Single
}

// scoreMSQ compares option-id sets: order-independent, duplicates collapsed,
// no partial credit for subsets.
func scoreMSQ(correct, selected model.AnswerValue) bool {
	if correct.Kind != model.AnswerMultiple || selected.Kind != model.AnswerMultiple {
		return false
	}
	return equalSets(selected.Multiple, correct.Multiple)
}

func scoreNAT(correct, selected model.AnswerValue) bool {
	want, ok := correct.AsNumeric()
	if !ok {
		return false
	}
	got, ok := selected.AsNumeric()
	if !ok {
		return false
	}
	return math.Abs(got-want) < NumericTolerance
}

func equalSets(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, id := range a {
		as[id] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, id := range b {
		bs[id] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for id := range as {
		if _, ok := bs[id]; !ok {
			return false
		}
	}
	return true
}
