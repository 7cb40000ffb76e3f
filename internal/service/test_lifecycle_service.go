package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quickquiz/quickquiz/internal/apperr"
	"github.com/quickquiz/quickquiz/internal/model"
	"github.com/quickquiz/quickquiz/internal/repository"
	"github.com/quickquiz/quickquiz/internal/scheduler"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AttemptFinalizer closes lingering in-progress attempts when a test
// completes. Implemented by the attempt service; injected here to keep the
// dependency one-directional.
type AttemptFinalizer interface {
	FinalizeExpired(ctx context.Context, testID uint) (int, error)
}

type CreateTestInput struct {
	CourseID        uint
	Title           string
	Description     string
	DifficultyLevel string
	NumQuestions    int
	DurationMinutes int
	TotalMarks      float64
	PassingMarks    float64
}

type EditStructureInput struct {
	AddCount    int
	RemoveCount int
	TotalMarks  *float64 // nil keeps the current total
}

// TestLifecycleService owns the test state machine. State-changing operations
// lock the test row, verify the current state admits the transition, and
// apply it atomically; scheduler jobs are (re)armed after the commit.
type TestLifecycleService interface {
	CreateTest(ctx context.Context, teacherID uint, input CreateTestInput) (*model.Test, error)
	GetTest(teacherID, testID uint) (*model.Test, error)
	ListByTeacher(teacherID uint) ([]model.Test, error)
	Publish(ctx context.Context, teacherID, testID uint, startTime time.Time) (*model.Test, error)
	ExtendDuration(ctx context.Context, teacherID, testID uint, deltaMinutes int) (*model.Test, error)
	EditStructure(ctx context.Context, teacherID, testID uint, input EditStructureInput) (*model.Test, error)
	Delete(ctx context.Context, teacherID, testID uint) error
	RestoreSchedules(ctx context.Context) error
}

type testLifecycleService struct {
	db         *gorm.DB
	testRepo   repository.TestRepository
	courseRepo repository.CourseRepository
	sched      *scheduler.Scheduler
	clock      scheduler.Clock
	generator  QuestionGenerator
	finalizer  AttemptFinalizer
}

func NewTestLifecycleService(
	db *gorm.DB,
	testRepo repository.TestRepository,
	courseRepo repository.CourseRepository,
	sched *scheduler.Scheduler,
	clock scheduler.Clock,
	generator QuestionGenerator,
	finalizer AttemptFinalizer,
) TestLifecycleService {
	return &testLifecycleService{
		db:         db,
		testRepo:   testRepo,
		courseRepo: courseRepo,
		sched:      sched,
		clock:      clock,
		generator:  generator,
		finalizer:  finalizer,
	}
}

func activateJobID(testID uint) string { return fmt.Sprintf("activate:%d", testID) }
func completeJobID(testID uint) string { return fmt.Sprintf("complete:%d", testID) }

func (s *testLifecycleService) CreateTest(ctx context.Context, teacherID uint, input CreateTestInput) (*model.Test, error) {
	if input.NumQuestions <= 0 {
		return nil, fmt.Errorf("num_questions must be positive: %w", apperr.ErrInvalidArgument)
	}
	if input.DurationMinutes <= 0 {
		return nil, fmt.Errorf("duration_minutes must be positive: %w", apperr.ErrInvalidArgument)
	}
	if input.TotalMarks <= 0 {
		return nil, fmt.Errorf("total_marks must be positive: %w", apperr.ErrInvalidArgument)
	}
	if input.PassingMarks < 0 || input.PassingMarks > input.TotalMarks {
		return nil, fmt.Errorf("passing_marks must lie within [0, total_marks]: %w", apperr.ErrInvalidArgument)
	}

	course, err := s.courseRepo.FindByID(input.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("course %d: %w", input.CourseID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}

	questions, err := s.generator.GenerateQuestions(ctx, GenerationParams{
		CourseName:       course.CourseName,
		CourseLevel:      course.CourseLevel,
		CourseObjectives: course.CourseObjectives,
		Title:            input.Title,
		Description:      input.Description,
		DifficultyLevel:  input.DifficultyLevel,
		Count:            input.NumQuestions,
		TotalMarks:       input.TotalMarks,
	})
	if err != nil {
		return nil, fmt.Errorf("question generation failed: %w", err)
	}

	test := &model.Test{
		CourseID:        input.CourseID,
		TeacherID:       teacherID,
		Title:           input.Title,
		Description:     input.Description,
		DifficultyLevel: input.DifficultyLevel,
		Status:          model.TestNotPublished,
		DurationMinutes: input.DurationMinutes,
		TotalQuestions:  len(questions),
		TotalMarks:      input.TotalMarks,
		PassingMarks:    input.PassingMarks,
		Questions:       questions,
	}
	if err := s.testRepo.Create(test); err != nil {
		return nil, fmt.Errorf("failed to create test: %w", err)
	}
	log.Info().Uint("test_id", test.ID).Uint("teacher_id", teacherID).
		Int("questions", len(questions)).Msg("test created")
	return test, nil
}

func (s *testLifecycleService) GetTest(teacherID, testID uint) (*model.Test, error) {
	test, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("test %d: %w", testID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load test: %w", err)
	}
	if test.TeacherID != teacherID {
		return nil, fmt.Errorf("test %d: %w", testID, apperr.ErrNotFound)
	}
	return test, nil
}

func (s *testLifecycleService) ListByTeacher(teacherID uint) ([]model.Test, error) {
	tests, err := s.testRepo.FindAllByTeacher(teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	return tests, nil
}

// Publish moves not_published -> published, pins start_time and arms the
// activate and complete timers. The start time must be in the future.
func (s *testLifecycleService) Publish(ctx context.Context, teacherID, testID uint, startTime time.Time) (*model.Test, error) {
	now := s.clock.Now()
	if !startTime.After(now) {
		return nil, fmt.Errorf("start_time must be in the future: %w", apperr.ErrInvalidArgument)
	}

	var published *model.Test
	err := s.inTx(func(tx *gorm.DB) error {
		test, err := lockTest(tx, testID)
		if err != nil {
			return err
		}
		if test.TeacherID != teacherID {
			return fmt.Errorf("test %d: %w", testID, apperr.ErrNotFound)
		}
		if test.Status != model.TestNotPublished {
			return fmt.Errorf("cannot publish test in status %q: %w", test.Status, apperr.ErrInvalidState)
		}
		if test.TotalQuestions == 0 {
			return fmt.Errorf("cannot publish a test with no questions: %w", apperr.ErrInvalidState)
		}
		test.Status = model.TestPublished
		test.StartTime = &startTime
		if err := tx.Save(test).Error; err != nil {
			return fmt.Errorf("failed to publish test: %w", err)
		}
		published = test
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sched.Schedule(activateJobID(testID), startTime, func(cctx context.Context) {
		s.activate(cctx, testID)
	})
	s.sched.Schedule(completeJobID(testID), published.EndTime(), func(cctx context.Context) {
		s.complete(cctx, testID)
	})
	log.Info().Uint("test_id", testID).Time("start_time", startTime).
		Time("end_time", published.EndTime()).Msg("test published")
	return published, nil
}

// activate is the scheduler callback flipping published -> active. The test
// may have been deleted or already completed by an extend race; anything but
// published is a no-op.
func (s *testLifecycleService) activate(ctx context.Context, testID uint) {
	err := s.inTx(func(tx *gorm.DB) error {
		test, err := lockTest(tx, testID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			return err
		}
		if test.Status != model.TestPublished {
			return nil
		}
		test.Status = model.TestActive
		return tx.Save(test).Error
	})
	if err != nil {
		log.Error().Err(err).Uint("test_id", testID).Msg("activate transition failed")
		return
	}
	log.Info().Uint("test_id", testID).Msg("test activated")
}

// complete flips published/active -> completed, then finalizes any attempts
// still open against the test.
func (s *testLifecycleService) complete(ctx context.Context, testID uint) {
	transitioned := false
	err := s.inTx(func(tx *gorm.DB) error {
		test, err := lockTest(tx, testID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			return err
		}
		if test.Status != model.TestPublished && test.Status != model.TestActive {
			return nil
		}
		test.Status = model.TestCompleted
		if err := tx.Save(test).Error; err != nil {
			return err
		}
		transitioned = true
		return nil
	})
	if err != nil {
		log.Error().Err(err).Uint("test_id", testID).Msg("complete transition failed")
		return
	}
	if !transitioned {
		return
	}

	finalized, err := s.finalizer.FinalizeExpired(ctx, testID)
	if err != nil {
		log.Error().Err(err).Uint("test_id", testID).Msg("failed to finalize expired attempts")
	}
	log.Info().Uint("test_id", testID).Int("auto_submitted", finalized).Msg("test completed")
}

// ExtendDuration shifts the duration of a published or active test by delta
// minutes (negative shrinks). The resulting duration must stay positive and
// the new end time must stay in the future. Drafts change their duration
// through authoring; completed tests are frozen.
func (s *testLifecycleService) ExtendDuration(ctx context.Context, teacherID, testID uint, deltaMinutes int) (*model.Test, error) {
	if deltaMinutes == 0 {
		return nil, fmt.Errorf("delta_minutes must be non-zero: %w", apperr.ErrInvalidArgument)
	}

	var updated *model.Test
	err := s.inTx(func(tx *gorm.DB) error {
		test, err := lockTest(tx, testID)
		if err != nil {
			return err
		}
		if test.TeacherID != teacherID {
			return fmt.Errorf("test %d: %w", testID, apperr.ErrNotFound)
		}
		if test.Status != model.TestPublished && test.Status != model.TestActive {
			return fmt.Errorf("cannot change duration of test in status %q: %w", test.Status, apperr.ErrInvalidState)
		}
		newDuration := test.DurationMinutes + deltaMinutes
		if newDuration <= 0 {
			return fmt.Errorf("duration would drop to %d minutes: %w", newDuration, apperr.ErrInvalidArgument)
		}
		if test.StartTime != nil {
			newEnd := test.StartTime.Add(time.Duration(newDuration) * time.Minute)
			if !newEnd.After(s.clock.Now()) {
				return fmt.Errorf("new duration would end the test in the past: %w", apperr.ErrInvalidArgument)
			}
		}
		test.DurationMinutes = newDuration
		if err := tx.Save(test).Error; err != nil {
			return fmt.Errorf("failed to update duration: %w", err)
		}
		updated = test
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.StartTime != nil {
		// Schedule rather than Reschedule: the old complete timer may already
		// have fired and been dropped, and the transition is idempotent.
		s.sched.Schedule(completeJobID(testID), updated.EndTime(), func(cctx context.Context) {
			s.complete(cctx, testID)
		})
	}
	log.Info().Uint("test_id", testID).Int("delta_minutes", deltaMinutes).
		Int("duration_minutes", updated.DurationMinutes).Msg("test duration changed")
	return updated, nil
}

// EditStructure adds generated questions and/or removes trailing ones while
// the test is still not_published, then recalibrates every mark against the
// (possibly updated) total.
func (s *testLifecycleService) EditStructure(ctx context.Context, teacherID, testID uint, input EditStructureInput) (*model.Test, error) {
	if input.AddCount < 0 || input.RemoveCount < 0 {
		return nil, fmt.Errorf("add/remove counts cannot be negative: %w", apperr.ErrInvalidArgument)
	}
	if input.AddCount == 0 && input.RemoveCount == 0 && input.TotalMarks == nil {
		return nil, fmt.Errorf("nothing to change: %w", apperr.ErrInvalidArgument)
	}
	if input.TotalMarks != nil && *input.TotalMarks <= 0 {
		return nil, fmt.Errorf("total_marks must be positive: %w", apperr.ErrInvalidArgument)
	}

	// Generation talks to the LLM, so it happens outside the transaction; the
	// state check is repeated under the row lock before anything is written.
	test, err := s.GetTest(teacherID, testID)
	if err != nil {
		return nil, err
	}
	if test.Status != model.TestNotPublished {
		return nil, fmt.Errorf("cannot edit structure of test in status %q: %w", test.Status, apperr.ErrInvalidState)
	}

	totalMarks := test.TotalMarks
	if input.TotalMarks != nil {
		totalMarks = *input.TotalMarks
	}

	var generated []model.Question
	if input.AddCount > 0 {
		course, err := s.courseRepo.FindByID(test.CourseID)
		if err != nil {
			return nil, fmt.Errorf("failed to load course: %w", err)
		}
		generated, err = s.generator.GenerateQuestions(ctx, GenerationParams{
			CourseName:       course.CourseName,
			CourseLevel:      course.CourseLevel,
			CourseObjectives: course.CourseObjectives,
			Title:            test.Title,
			Description:      test.Description,
			DifficultyLevel:  test.DifficultyLevel,
			Count:            input.AddCount,
			TotalMarks:       totalMarks,
		})
		if err != nil {
			return nil, fmt.Errorf("question generation failed: %w", err)
		}
	}

	var updated *model.Test
	err = s.inTx(func(tx *gorm.DB) error {
		locked, err := lockTest(tx, testID)
		if err != nil {
			return err
		}
		if locked.TeacherID != teacherID {
			return fmt.Errorf("test %d: %w", testID, apperr.ErrNotFound)
		}
		if locked.Status != model.TestNotPublished {
			return fmt.Errorf("cannot edit structure of test in status %q: %w", locked.Status, apperr.ErrInvalidState)
		}

		var questions []model.Question
		if err := tx.Where("test_id = ?", testID).Order("id ASC").Find(&questions).Error; err != nil {
			return fmt.Errorf("failed to load questions: %w", err)
		}
		if input.RemoveCount > len(questions) {
			return fmt.Errorf("cannot remove %d of %d questions: %w", input.RemoveCount, len(questions), apperr.ErrInvalidArgument)
		}
		if input.RemoveCount > 0 {
			removed := questions[len(questions)-input.RemoveCount:]
			questions = questions[:len(questions)-input.RemoveCount]
			ids := make([]uint, len(removed))
			for i, q := range removed {
				ids[i] = q.ID
			}
			if err := tx.Delete(&model.Question{}, ids).Error; err != nil {
				return fmt.Errorf("failed to remove questions: %w", err)
			}
		}
		for i := range generated {
			generated[i].TestID = testID
		}
		if len(generated) > 0 {
			if err := tx.Create(&generated).Error; err != nil {
				return fmt.Errorf("failed to add questions: %w", err)
			}
			questions = append(questions, generated...)
		}
		if len(questions) == 0 {
			return fmt.Errorf("a test must keep at least one question: %w", apperr.ErrInvalidArgument)
		}

		Recalibrate(questions, totalMarks)
		for i := range questions {
			err := tx.Model(&model.Question{}).
				Where("id = ?", questions[i].ID).
				Update("marks", questions[i].Marks).Error
			if err != nil {
				return fmt.Errorf("failed to recalibrate marks: %w", err)
			}
		}

		locked.TotalQuestions = len(questions)
		locked.TotalMarks = totalMarks
		if locked.PassingMarks > totalMarks {
			locked.PassingMarks = totalMarks
		}
		if err := tx.Save(locked).Error; err != nil {
			return fmt.Errorf("failed to update test totals: %w", err)
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Uint("test_id", testID).Int("added", input.AddCount).
		Int("removed", input.RemoveCount).Int("total_questions", updated.TotalQuestions).
		Msg("test structure edited")
	return updated, nil
}

// Delete removes the test and everything hanging off it: question attempts,
// attempts, questions, then the test row. Pending timers are canceled.
func (s *testLifecycleService) Delete(ctx context.Context, teacherID, testID uint) error {
	err := s.inTx(func(tx *gorm.DB) error {
		test, err := lockTest(tx, testID)
		if err != nil {
			return err
		}
		if test.TeacherID != teacherID {
			return fmt.Errorf("test %d: %w", testID, apperr.ErrNotFound)
		}

		attemptIDs := tx.Model(&model.Attempt{}).Select("id").Where("test_id = ?", testID)
		if err := tx.Where("attempt_id IN (?)", attemptIDs).Delete(&model.QuestionAttempt{}).Error; err != nil {
			return fmt.Errorf("failed to delete question attempts: %w", err)
		}
		if err := tx.Where("test_id = ?", testID).Delete(&model.Attempt{}).Error; err != nil {
			return fmt.Errorf("failed to delete attempts: %w", err)
		}
		if err := tx.Where("test_id = ?", testID).Delete(&model.Question{}).Error; err != nil {
			return fmt.Errorf("failed to delete questions: %w", err)
		}
		if err := tx.Delete(&model.Test{}, testID).Error; err != nil {
			return fmt.Errorf("failed to delete test: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.sched.Cancel(activateJobID(testID))
	s.sched.Cancel(completeJobID(testID))
	log.Info().Uint("test_id", testID).Msg("test deleted")
	return nil
}

// RestoreSchedules re-arms timers for tests that were mid-window when the
// process last stopped. Deadlines already in the past fire immediately since
// the scheduler treats them as due.
func (s *testLifecycleService) RestoreSchedules(ctx context.Context) error {
	tests, err := s.testRepo.FindByStatuses([]model.TestStatus{model.TestPublished, model.TestActive})
	if err != nil {
		return fmt.Errorf("failed to load schedulable tests: %w", err)
	}
	for i := range tests {
		t := tests[i]
		if t.StartTime == nil {
			continue
		}
		id := t.ID
		if t.Status == model.TestPublished {
			s.sched.Schedule(activateJobID(id), *t.StartTime, func(cctx context.Context) {
				s.activate(cctx, id)
			})
		}
		s.sched.Schedule(completeJobID(id), t.EndTime(), func(cctx context.Context) {
			s.complete(cctx, id)
		})
	}
	if len(tests) > 0 {
		log.Info().Int("tests", len(tests)).Msg("restored lifecycle schedules")
	}
	return nil
}

// lockTest loads the test row under FOR UPDATE inside tx.
func lockTest(tx *gorm.DB, testID uint) (*model.Test, error) {
	var test model.Test
	if err := repository.ForUpdate(tx).First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("test %d: %w", testID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock test: %w", err)
	}
	return &test, nil
}

// inTx runs fn in a transaction, retrying once when the database reports a
// lock conflict.
func (s *testLifecycleService) inTx(fn func(tx *gorm.DB) error) error {
	err := s.db.Transaction(fn)
	if err != nil && isLockConflict(err) {
		log.Warn().Err(err).Msg("transaction hit lock conflict, retrying once")
		err = s.db.Transaction(fn)
	}
	return err
}

func isLockConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "database is locked")
}
