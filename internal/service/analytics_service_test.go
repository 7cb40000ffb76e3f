package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quickquiz/quickquiz/internal/apperr"
	"github.com/quickquiz/quickquiz/internal/model"
)

func TestListAttemptableTestsFlags(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	views, err := f.analytics.ListAttemptableTests(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d views, want 1", len(views))
	}
	if !views[0].CanAttempt || views[0].HasInProgress || views[0].Attempted {
		t.Fatalf("fresh window flags = %+v", views[0])
	}

	attempt, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	views, _ = f.analytics.ListAttemptableTests(10)
	if !views[0].HasInProgress {
		t.Fatal("open attempt not reflected")
	}

	if _, err := f.attempts.Submit(context.Background(), 10, attempt.ID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	views, _ = f.analytics.ListAttemptableTests(10)
	if !views[0].Attempted || views[0].CanAttempt {
		t.Fatalf("post-submit flags = %+v, want attempted and no retake", views[0])
	}
}

func TestAttemptSummaryRevealsAnswersOnlyWhenClosed(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	attempt, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.analytics.AttemptSummary(10, attempt.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("summary of open attempt: got %v, want ErrInvalidState", err)
	}

	view, err := f.attempts.Questions(10, attempt.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	mcq := view.Questions[0]
	if _, err := f.attempts.SaveAnswer(context.Background(), 10, attempt.ID, mcq.ID, model.SingleAnswer("B")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := f.attempts.Submit(context.Background(), 10, attempt.ID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	summary, err := f.analytics.AttemptSummary(10, attempt.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TestTitle != "Midterm" {
		t.Fatalf("test title = %q", summary.TestTitle)
	}
	if len(summary.Questions) != 3 {
		t.Fatalf("summary has %d questions, want 3", len(summary.Questions))
	}
	first := summary.Questions[0]
	if first.CorrectAnswer == "" {
		t.Fatal("closed summary hides the correct answer")
	}
	if first.IsCorrect == nil || !*first.IsCorrect {
		t.Fatal("graded mcq not marked correct")
	}
	if first.MarksObtained != 2 {
		t.Fatalf("mcq marks = %v, want 2", first.MarksObtained)
	}

	if _, err := f.analytics.AttemptSummary(99, attempt.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("foreign student summary: got %v, want ErrNotFound", err)
	}
}

func TestTestAnalyticsAggregates(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	var questions []model.Question
	if err := f.db.Where("test_id = ?", test.ID).Order("id ASC").Find(&questions).Error; err != nil {
		t.Fatalf("load questions: %v", err)
	}
	mcq, msq, nat := questions[0], questions[1], questions[2]

	submitFor := func(student uint, answers []SubmittedAnswer) {
		t.Helper()
		enrollStudent(t, f.db, student, course.ID)
		attempt, _, err := f.attempts.Start(context.Background(), student, test.ID, StartMeta{})
		if err != nil {
			t.Fatalf("start for %d: %v", student, err)
		}
		if _, err := f.attempts.Submit(context.Background(), student, attempt.ID, answers); err != nil {
			t.Fatalf("submit for %d: %v", student, err)
		}
	}

	submitFor(10, []SubmittedAnswer{
		{QuestionID: mcq.ID, Answer: model.SingleAnswer("B")},
		{QuestionID: msq.ID, Answer: model.MultipleAnswer("A", "C")},
		{QuestionID: nat.ID, Answer: model.NumericAnswer(42)},
	})
	submitFor(11, []SubmittedAnswer{
		{QuestionID: mcq.ID, Answer: model.SingleAnswer("B")},
		{QuestionID: msq.ID, Answer: model.MultipleAnswer("B")},
	})

	analytics, err := f.analytics.TestAnalytics(1, test.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if analytics.AttemptCount != 2 {
		t.Fatalf("attempt count = %d, want 2", analytics.AttemptCount)
	}
	// 10 scores 10/10 (pass), 11 scores 2/10 (fail at passing mark 5).
	if analytics.PassCount != 1 {
		t.Fatalf("pass count = %d, want 1", analytics.PassCount)
	}
	if analytics.MeanPercentage != 60 {
		t.Fatalf("mean = %v, want 60", analytics.MeanPercentage)
	}
	if analytics.MedianPercentage != 60 {
		t.Fatalf("median = %v, want 60", analytics.MedianPercentage)
	}

	// Both students answered the mcq correctly; only one got the msq.
	if acc := analytics.ByDifficulty[model.DifficultyEasy]; acc.Correct != 2 || acc.Total != 2 {
		t.Fatalf("easy accuracy = %+v, want 2/2", acc)
	}
	if acc := analytics.ByDifficulty[model.DifficultyMedium]; acc.Correct != 1 || acc.Total != 2 {
		t.Fatalf("medium accuracy = %+v, want 1/2", acc)
	}
	if acc := analytics.ByTag["algebra"]; acc.Total == 0 {
		t.Fatal("algebra tag missing from rollup")
	}

	if _, err := f.analytics.TestAnalytics(2, test.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("foreign teacher: got %v, want ErrNotFound", err)
	}
}

func TestStudentResultsRollup(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	attempt, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Open attempts stay out of the history.
	results, err := f.analytics.StudentResults(10)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("open attempt leaked into results: %+v", results)
	}

	if _, err := f.attempts.Submit(context.Background(), 10, attempt.ID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	results, err = f.analytics.StudentResults(10)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 1 || results[0].TestTitle != "Midterm" {
		t.Fatalf("results = %+v, want one Midterm row", results)
	}
}
