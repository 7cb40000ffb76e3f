package service

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/quickquiz/quickquiz/internal/apperr"
	"github.com/quickquiz/quickquiz/internal/model"
	"github.com/quickquiz/quickquiz/internal/repository"
	"github.com/quickquiz/quickquiz/internal/scheduler"
	"gorm.io/gorm"
)

// StudentTestView is one row of the student's test listing: the test plus
// flags describing what the student can do with it right now.
type StudentTestView struct {
	Test          model.Test `json:"test"`
	CanAttempt    bool       `json:"can_attempt"`
	HasInProgress bool       `json:"has_in_progress"`
	Attempted     bool       `json:"attempted"`
}

// QuestionResult is one graded question in an attempt summary. CorrectAnswer
// is only populated once the attempt is terminal.
type QuestionResult struct {
	QuestionID     uint               `json:"question_id"`
	QuestionText   string             `json:"question_text"`
	QuestionType   model.QuestionType `json:"question_type"`
	Options        []model.Option     `json:"options,omitempty"`
	Difficulty     model.Difficulty   `json:"difficulty"`
	Marks          float64            `json:"marks"`
	Tags           []string           `json:"tags,omitempty"`
	SelectedAnswer *string            `json:"selected_answer,omitempty"`
	CorrectAnswer  string             `json:"correct_answer,omitempty"`
	IsCorrect      *bool              `json:"is_correct,omitempty"`
	MarksObtained  float64            `json:"marks_obtained"`
}

// AttemptSummary is the graded view of a terminal attempt.
type AttemptSummary struct {
	Attempt   model.Attempt    `json:"attempt"`
	TestTitle string           `json:"test_title"`
	Questions []QuestionResult `json:"questions"`
}

// Accuracy is a correct/total rollup for one tag or difficulty bucket.
type Accuracy struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"` // percentage, two decimals
}

// TestAnalytics aggregates all graded attempts of one test for its teacher.
type TestAnalytics struct {
	TestID           uint                          `json:"test_id"`
	AttemptCount     int                           `json:"attempt_count"`
	PassCount        int                           `json:"pass_count"`
	MeanPercentage   float64                       `json:"mean_percentage"`
	MedianPercentage float64                       `json:"median_percentage"`
	StdDevPercentage float64                       `json:"stddev_percentage"`
	ByTag            map[string]Accuracy           `json:"by_tag"`
	ByDifficulty     map[model.Difficulty]Accuracy `json:"by_difficulty"`
}

// StudentResult is one row of a student's results history.
type StudentResult struct {
	Attempt   model.Attempt `json:"attempt"`
	TestTitle string        `json:"test_title"`
}

// AnalyticsService produces the read-side views: the student's test listing
// with attemptability flags, graded attempt summaries, per-test aggregates
// for teachers, and the student's results history.
type AnalyticsService interface {
	ListAttemptableTests(studentID uint) ([]StudentTestView, error)
	AttemptSummary(studentID, attemptID uint) (*AttemptSummary, error)
	TestAnalytics(teacherID, testID uint) (*TestAnalytics, error)
	StudentResults(studentID uint) ([]StudentResult, error)
}

type analyticsService struct {
	testRepo       repository.TestRepository
	attemptRepo    repository.AttemptRepository
	qaRepo         repository.QuestionAttemptRepository
	questionRepo   repository.QuestionRepository
	enrollmentRepo repository.EnrollmentRepository
	clock          scheduler.Clock
}

func NewAnalyticsService(
	testRepo repository.TestRepository,
	attemptRepo repository.AttemptRepository,
	qaRepo repository.QuestionAttemptRepository,
	questionRepo repository.QuestionRepository,
	enrollmentRepo repository.EnrollmentRepository,
	clock scheduler.Clock,
) AnalyticsService {
	return &analyticsService{
		testRepo:       testRepo,
		attemptRepo:    attemptRepo,
		qaRepo:         qaRepo,
		questionRepo:   questionRepo,
		enrollmentRepo: enrollmentRepo,
		clock:          clock,
	}
}

func (s *analyticsService) ListAttemptableTests(studentID uint) ([]StudentTestView, error) {
	enrollments, err := s.enrollmentRepo.FindAllByStudent(studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	now := s.clock.Now()

	var views []StudentTestView
	for _, e := range enrollments {
		tests, err := s.testRepo.FindByCourse(e.CourseID, []model.TestStatus{
			model.TestPublished, model.TestActive, model.TestCompleted,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list tests for course %d: %w", e.CourseID, err)
		}
		for _, t := range tests {
			attempts, err := s.attemptRepo.FindByStudentAndTest(studentID, t.ID, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to load attempts: %w", err)
			}
			view := StudentTestView{Test: t}
			for _, a := range attempts {
				if a.Status == model.AttemptInProgress {
					view.HasInProgress = true
				}
				if a.Status.Terminal() {
					view.Attempted = true
				}
			}
			view.CanAttempt = t.Attemptable(now) && !view.Attempted
			views = append(views, view)
		}
	}
	return views, nil
}

// AttemptSummary returns the graded breakdown of a closed attempt. Correct
// answers stay hidden while the attempt is still open.
func (s *analyticsService) AttemptSummary(studentID, attemptID uint) (*AttemptSummary, error) {
	attempt, err := s.attemptRepo.FindByIDWithAnswers(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("attempt %d: %w", attemptID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, fmt.Errorf("attempt %d: %w", attemptID, apperr.ErrNotFound)
	}
	if !attempt.Status.Terminal() {
		return nil, fmt.Errorf("attempt %d is still in progress: %w", attemptID, apperr.ErrInvalidState)
	}

	questions, err := s.questionRepo.FindByTestID(attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	answerByQuestion := make(map[uint]model.QuestionAttempt, len(attempt.QuestionAttempts))
	for _, qa := range attempt.QuestionAttempts {
		answerByQuestion[qa.QuestionID] = qa
	}

	results := make([]QuestionResult, 0, len(questions))
	for _, q := range questions {
		r := QuestionResult{
			QuestionID:    q.ID,
			QuestionText:  q.QuestionText,
			QuestionType:  q.QuestionType,
			Options:       q.OptionList(),
			Difficulty:    q.Difficulty,
			Marks:         q.Marks,
			Tags:          q.TagList(),
			CorrectAnswer: q.CorrectAnswer,
		}
		if qa, ok := answerByQuestion[q.ID]; ok {
			r.SelectedAnswer = qa.SelectedAnswer
			r.IsCorrect = qa.IsCorrect
			r.MarksObtained = qa.MarksObtained
		}
		results = append(results, r)
	}

	return &AttemptSummary{
		Attempt:   *attempt,
		TestTitle: attempt.Test.Title,
		Questions: results,
	}, nil
}

func (s *analyticsService) TestAnalytics(teacherID, testID uint) (*TestAnalytics, error) {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("test %d: %w", testID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load test: %w", err)
	}
	if test.TeacherID != teacherID {
		return nil, fmt.Errorf("test %d: %w", testID, apperr.ErrNotFound)
	}

	attempts, err := s.attemptRepo.FindAllByTest(testID, []model.AttemptStatus{
		model.AttemptSubmitted, model.AttemptAutoSubmitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}
	questions, err := s.questionRepo.FindByTestID(testID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	questionByID := make(map[uint]*model.Question, len(questions))
	for i := range questions {
		questionByID[questions[i].ID] = &questions[i]
	}

	analytics := &TestAnalytics{
		TestID:       testID,
		AttemptCount: len(attempts),
		ByTag:        make(map[string]Accuracy),
		ByDifficulty: make(map[model.Difficulty]Accuracy),
	}

	percentages := make([]float64, 0, len(attempts))
	for _, a := range attempts {
		percentages = append(percentages, a.Percentage)
		if a.Passed != nil && *a.Passed {
			analytics.PassCount++
		}

		rows, err := s.qaRepo.FindAllByAttempt(a.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load answers for attempt %d: %w", a.ID, err)
		}
		for _, qa := range rows {
			q, ok := questionByID[qa.QuestionID]
			if !ok || qa.IsCorrect == nil {
				continue
			}
			correct := *qa.IsCorrect
			bumpAccuracy(analytics.ByDifficulty, q.Difficulty, correct)
			for _, tag := range q.TagList() {
				bumpAccuracy(analytics.ByTag, tag, correct)
			}
		}
	}

	analytics.MeanPercentage = round2(mean(percentages))
	analytics.MedianPercentage = round2(median(percentages))
	analytics.StdDevPercentage = round2(stddev(percentages))
	finalizeAccuracy(analytics.ByTag)
	finalizeAccuracy(analytics.ByDifficulty)
	return analytics, nil
}

func (s *analyticsService) StudentResults(studentID uint) ([]StudentResult, error) {
	attempts, err := s.attemptRepo.FindAllByStudent(studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	results := make([]StudentResult, 0, len(attempts))
	for _, a := range attempts {
		if !a.Status.Terminal() {
			continue
		}
		title := ""
		if test, err := s.testRepo.FindByID(a.TestID); err == nil {
			title = test.Title
		}
		results = append(results, StudentResult{Attempt: a, TestTitle: title})
	}
	return results, nil
}

func bumpAccuracy[K comparable](m map[K]Accuracy, key K, correct bool) {
	acc := m[key]
	acc.Total++
	if correct {
		acc.Correct++
	}
	m[key] = acc
}

func finalizeAccuracy[K comparable](m map[K]Accuracy) {
	for key, acc := range m {
		if acc.Total > 0 {
			acc.Rate = round2(float64(acc.Correct) / float64(acc.Total) * 100)
		}
		m[key] = acc
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)))
}
