package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/quickquiz/quickquiz/internal/model"
	"github.com/quickquiz/quickquiz/internal/repository"
	"github.com/quickquiz/quickquiz/internal/scheduler"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestDB opens a per-test in-memory database with the full schema,
// including the partial unique index guarding one open attempt per lineage.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	err = db.AutoMigrate(
		&model.Course{},
		&model.Enrollment{},
		&model.Test{},
		&model.Question{},
		&model.Attempt{},
		&model.QuestionAttempt{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_one_in_progress
		ON attempts (student_id, test_id) WHERE status = 'in_progress'`).Error
	if err != nil {
		t.Fatalf("create partial index: %v", err)
	}
	return db
}

type fixture struct {
	db    *gorm.DB
	clock *scheduler.FakeClock
	sched *scheduler.Scheduler

	attempts   AttemptService
	lifecycle  TestLifecycleService
	enrollment EnrollmentService
	analytics  AnalyticsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	clock := scheduler.NewFakeClock(testEpoch)
	sched := scheduler.New(clock)
	sched.Start()
	t.Cleanup(sched.Stop)

	testRepo := repository.NewTestRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	qaRepo := repository.NewQuestionAttemptRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	attempts := NewAttemptService(db, attemptRepo, testRepo, questionRepo, qaRepo, enrollmentRepo, clock)
	lifecycle := NewTestLifecycleService(db, testRepo, courseRepo, sched, clock, stubGenerator{}, attempts)
	enrollment := NewEnrollmentService(courseRepo, enrollmentRepo)
	analytics := NewAnalyticsService(testRepo, attemptRepo, qaRepo, questionRepo, enrollmentRepo, clock)

	return &fixture{
		db:         db,
		clock:      clock,
		sched:      sched,
		attempts:   attempts,
		lifecycle:  lifecycle,
		enrollment: enrollment,
		analytics:  analytics,
	}
}

// stubGenerator produces deterministic questions so lifecycle tests do not
// touch the LLM. Marks come pre-calibrated like the real generator's.
type stubGenerator struct{}

func (stubGenerator) GenerateQuestions(_ context.Context, params GenerationParams) ([]model.Question, error) {
	difficulties := []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard}
	questions := make([]model.Question, params.Count)
	levels := make([]model.Difficulty, params.Count)
	for i := range questions {
		levels[i] = difficulties[i%len(difficulties)]
		q := model.Question{
			QuestionText:  fmt.Sprintf("Generated question %d", i+1),
			QuestionType:  model.QuestionMCQ,
			CorrectAnswer: `"B"`,
			Difficulty:    levels[i],
		}
		q.SetOptions([]model.Option{{ID: "A", Text: "first"}, {ID: "B", Text: "second"}, {ID: "C", Text: "third"}})
		q.SetTags([]string{"generated"})
		questions[i] = q
	}
	for i, m := range MarkDistribution(levels, params.TotalMarks) {
		questions[i].Marks = m
	}
	return questions, nil
}

func seedCourse(t *testing.T, db *gorm.DB) *model.Course {
	t.Helper()
	course := &model.Course{TeacherID: 1, CourseName: "Linear Algebra", CourseLevel: "undergraduate"}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return course
}

func enrollStudent(t *testing.T, db *gorm.DB, studentID, courseID uint) {
	t.Helper()
	if err := db.Create(&model.Enrollment{StudentID: studentID, CourseID: courseID}).Error; err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}
}

// seedPublishedTest creates a three-question test (mcq/msq/nat, 2+3+5 marks,
// passing 5) published to start at the given time.
func seedPublishedTest(t *testing.T, db *gorm.DB, courseID uint, start time.Time, durationMinutes int) *model.Test {
	t.Helper()
	test := &model.Test{
		CourseID:        courseID,
		TeacherID:       1,
		Title:           "Midterm",
		Status:          model.TestPublished,
		StartTime:       &start,
		DurationMinutes: durationMinutes,
		TotalQuestions:  3,
		TotalMarks:      10,
		PassingMarks:    5,
	}
	if err := db.Create(test).Error; err != nil {
		t.Fatalf("seed test: %v", err)
	}

	q1 := model.Question{TestID: test.ID, QuestionText: "2+2?", QuestionType: model.QuestionMCQ,
		CorrectAnswer: `"B"`, Marks: 2, Difficulty: model.DifficultyEasy}
	q1.SetOptions([]model.Option{{ID: "A", Text: "3"}, {ID: "B", Text: "4"}, {ID: "C", Text: "5"}})
	q1.SetTags([]string{"algebra"})

	q2 := model.Question{TestID: test.ID, QuestionText: "Which are prime?", QuestionType: model.QuestionMSQ,
		CorrectAnswer: `["A","C"]`, Marks: 3, Difficulty: model.DifficultyMedium}
	q2.SetOptions([]model.Option{{ID: "A", Text: "2"}, {ID: "B", Text: "4"}, {ID: "C", Text: "7"}})
	q2.SetTags([]string{"number theory"})

	q3 := model.Question{TestID: test.ID, QuestionText: "6*7?", QuestionType: model.QuestionNAT,
		CorrectAnswer: `42`, Marks: 5, Difficulty: model.DifficultyHard}
	q3.SetTags([]string{"algebra"})

	questions := []model.Question{q1, q2, q3}
	if err := db.Create(&questions).Error; err != nil {
		t.Fatalf("seed questions: %v", err)
	}
	return test
}

// waitForTestStatus polls until the scheduler callback lands the test in the
// wanted status. Callbacks run asynchronously after a clock advance.
func waitForTestStatus(t *testing.T, db *gorm.DB, testID uint, want model.TestStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var test model.Test
		if err := db.First(&test, testID).Error; err == nil && test.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	var test model.Test
	_ = db.First(&test, testID).Error
	t.Fatalf("test %d never reached status %q, still %q", testID, want, test.Status)
}

func waitForAttemptStatus(t *testing.T, db *gorm.DB, attemptID uint, want model.AttemptStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var attempt model.Attempt
		if err := db.First(&attempt, attemptID).Error; err == nil && attempt.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	var attempt model.Attempt
	_ = db.First(&attempt, attemptID).Error
	t.Fatalf("attempt %d never reached status %q, still %q", attemptID, want, attempt.Status)
}
