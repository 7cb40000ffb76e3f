package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quickquiz/quickquiz/internal/apperr"
	"github.com/quickquiz/quickquiz/internal/model"
)

func TestStartRespectsWindow(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	start := testEpoch.Add(time.Hour)
	test := seedPublishedTest(t, f.db, course.ID, start, 30)

	// One second before start.
	f.clock.Advance(time.Hour - time.Second)
	_, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if !errors.Is(err, apperr.ErrWindowClosed) {
		t.Fatalf("start before window: got %v, want ErrWindowClosed", err)
	}

	// One second after start.
	f.clock.Advance(2 * time.Second)
	attempt, resumed, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("start inside window: %v", err)
	}
	if resumed {
		t.Fatal("fresh start reported as resume")
	}
	if attempt.Status != model.AttemptInProgress {
		t.Fatalf("new attempt status = %q", attempt.Status)
	}
}

func TestStartRequiresEnrollment(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	_, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if !errors.Is(err, apperr.ErrNotEnrolled) {
		t.Fatalf("got %v, want ErrNotEnrolled", err)
	}
}

func TestStartResumesOpenAttempt(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	first, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	second, resumed, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !resumed {
		t.Fatal("second start did not report a resume")
	}
	if second.ID != first.ID {
		t.Fatalf("resume returned attempt %d, want %d", second.ID, first.ID)
	}
}

func TestStartBlockedAfterTerminalAttempt(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	attempt, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.attempts.Submit(context.Background(), 10, attempt.ID, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, _, err = f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if !errors.Is(err, apperr.ErrAlreadySubmitted) {
		t.Fatalf("got %v, want ErrAlreadySubmitted", err)
	}
}

func TestOpenAttemptUniquePerLineage(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch, 30)

	first := model.Attempt{StudentID: 10, TestID: test.ID, Status: model.AttemptInProgress, StartedAt: testEpoch}
	if err := f.db.Create(&first).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	second := model.Attempt{StudentID: 10, TestID: test.ID, Status: model.AttemptInProgress, StartedAt: testEpoch}
	if err := f.db.Create(&second).Error; err == nil {
		t.Fatal("second open attempt for the same lineage was accepted")
	}

	// A terminal attempt does not hold the slot.
	if err := f.db.Model(&first).Update("status", model.AttemptSubmitted).Error; err != nil {
		t.Fatalf("close first: %v", err)
	}
	third := model.Attempt{StudentID: 10, TestID: test.ID, Status: model.AttemptInProgress, StartedAt: testEpoch}
	if err := f.db.Create(&third).Error; err != nil {
		t.Fatalf("open attempt after terminal was rejected: %v", err)
	}
}

func TestSaveAnswerUpsertsAndTracksChanges(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	attempt, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	view, err := f.attempts.Questions(10, attempt.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	mcqID := view.Questions[0].ID

	qa, err := f.attempts.SaveAnswer(context.Background(), 10, attempt.ID, mcqID, model.SingleAnswer("A"))
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if qa.AnswerChanged || qa.AnswerChangeCount != 0 {
		t.Fatalf("first save marked as change: changed=%v count=%d", qa.AnswerChanged, qa.AnswerChangeCount)
	}

	qa, err = f.attempts.SaveAnswer(context.Background(), 10, attempt.ID, mcqID, model.SingleAnswer("B"))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if !qa.AnswerChanged || qa.AnswerChangeCount != 1 {
		t.Fatalf("change not tracked: changed=%v count=%d", qa.AnswerChanged, qa.AnswerChangeCount)
	}

	// Re-saving the same value is not a change.
	qa, err = f.attempts.SaveAnswer(context.Background(), 10, attempt.ID, mcqID, model.SingleAnswer("B"))
	if err != nil {
		t.Fatalf("third save: %v", err)
	}
	if qa.AnswerChangeCount != 1 {
		t.Fatalf("identical save bumped change count to %d", qa.AnswerChangeCount)
	}
}

func TestSaveAnswerAfterWindowRejected(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	attempt, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	view, err := f.attempts.Questions(10, attempt.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}

	// 31 minutes past start of a 30 minute window.
	f.clock.Advance(31 * time.Minute)
	_, err = f.attempts.SaveAnswer(context.Background(), 10, attempt.ID, view.Questions[0].ID, model.SingleAnswer("B"))
	if !errors.Is(err, apperr.ErrWindowClosed) {
		t.Fatalf("got %v, want ErrWindowClosed", err)
	}
}

func TestSaveAnswerValidatesShape(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	attempt, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	view, err := f.attempts.Questions(10, attempt.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	mcqID := view.Questions[0].ID

	_, err = f.attempts.SaveAnswer(context.Background(), 10, attempt.ID, mcqID, model.MultipleAnswer("A", "B"))
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("list answer on mcq: got %v, want ErrInvalidArgument", err)
	}

	_, err = f.attempts.SaveAnswer(context.Background(), 10, attempt.ID, 9999, model.SingleAnswer("A"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("foreign question: got %v, want ErrNotFound", err)
	}
}

func TestSubmitGradesAndCloses(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	attempt, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	view, err := f.attempts.Questions(10, attempt.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	mcq, msq, nat := view.Questions[0], view.Questions[1], view.Questions[2]

	// Save two answers, carry the third in the submit payload.
	if _, err := f.attempts.SaveAnswer(context.Background(), 10, attempt.ID, mcq.ID, model.SingleAnswer("B")); err != nil {
		t.Fatalf("save mcq: %v", err)
	}
	if _, err := f.attempts.SaveAnswer(context.Background(), 10, attempt.ID, msq.ID, model.MultipleAnswer("C", "A")); err != nil {
		t.Fatalf("save msq: %v", err)
	}

	f.clock.Advance(10 * time.Minute)
	submitted, err := f.attempts.Submit(context.Background(), 10, attempt.ID, []SubmittedAnswer{
		{QuestionID: nat.ID, Answer: model.NumericAnswer(42)},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if submitted.Status != model.AttemptSubmitted {
		t.Fatalf("status = %q", submitted.Status)
	}
	if submitted.TotalScore != 10 {
		t.Fatalf("total score = %v, want 10", submitted.TotalScore)
	}
	if submitted.Percentage != 100 {
		t.Fatalf("percentage = %v, want 100", submitted.Percentage)
	}
	if submitted.Passed == nil || !*submitted.Passed {
		t.Fatal("full-score attempt did not pass")
	}
	if want := int((10 * time.Minute).Seconds()); submitted.TimeTakenSeconds != want {
		t.Fatalf("time taken = %d, want %d", submitted.TimeTakenSeconds, want)
	}

	// Closing is one-way.
	if _, err := f.attempts.Submit(context.Background(), 10, attempt.ID, nil); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("resubmit: got %v, want ErrInvalidState", err)
	}
	if _, err := f.attempts.SaveAnswer(context.Background(), 10, attempt.ID, mcq.ID, model.SingleAnswer("A")); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("save after submit: got %v, want ErrInvalidState", err)
	}
}

func TestSubmitScoresWrongAndMissingAnswers(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	attempt, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	view, err := f.attempts.Questions(10, attempt.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	mcq, msq := view.Questions[0], view.Questions[1]

	// mcq wrong, msq subset (no partial credit), nat never answered.
	submitted, err := f.attempts.Submit(context.Background(), 10, attempt.ID, []SubmittedAnswer{
		{QuestionID: mcq.ID, Answer: model.SingleAnswer("A")},
		{QuestionID: msq.ID, Answer: model.MultipleAnswer("A")},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.TotalScore != 0 {
		t.Fatalf("total score = %v, want 0", submitted.TotalScore)
	}
	if submitted.Passed == nil || *submitted.Passed {
		t.Fatal("zero-score attempt passed")
	}
}

func TestFinalizeExpiredAutoSubmits(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	attempt, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	view, err := f.attempts.Questions(10, attempt.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if _, err := f.attempts.SaveAnswer(context.Background(), 10, attempt.ID, view.Questions[0].ID, model.SingleAnswer("B")); err != nil {
		t.Fatalf("save: %v", err)
	}

	f.clock.Advance(35 * time.Minute)
	finalized, err := f.attempts.FinalizeExpired(context.Background(), test.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if finalized != 1 {
		t.Fatalf("finalized %d attempts, want 1", finalized)
	}

	var closed model.Attempt
	if err := f.db.First(&closed, attempt.ID).Error; err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	if closed.Status != model.AttemptAutoSubmitted {
		t.Fatalf("status = %q, want auto_submitted", closed.Status)
	}
	if closed.TotalScore != 2 {
		t.Fatalf("total score = %v, want 2 (only the saved mcq)", closed.TotalScore)
	}

	// Re-running finds nothing left to close.
	finalized, err = f.attempts.FinalizeExpired(context.Background(), test.ID)
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if finalized != 0 {
		t.Fatalf("second finalize closed %d attempts, want 0", finalized)
	}
}

func TestQuestionsRequireOwnership(t *testing.T) {
	f := newFixture(t)
	course := seedCourse(t, f.db)
	enrollStudent(t, f.db, 10, course.ID)
	test := seedPublishedTest(t, f.db, course.ID, testEpoch.Add(time.Minute), 30)
	f.clock.Advance(2 * time.Minute)

	attempt, _, err := f.attempts.Start(context.Background(), 10, test.ID, StartMeta{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.attempts.Questions(99, attempt.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("foreign student: got %v, want ErrNotFound", err)
	}

	view, err := f.attempts.Questions(10, attempt.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(view.Questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(view.Questions))
	}
}
