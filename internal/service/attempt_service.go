package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/quickquiz/quickquiz/internal/apperr"
	"github.com/quickquiz/quickquiz/internal/model"
	"github.com/quickquiz/quickquiz/internal/repository"
	"github.com/quickquiz/quickquiz/internal/scheduler"
	"github.com/quickquiz/quickquiz/internal/scoring"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// StartMeta carries request metadata recorded on the attempt row.
type StartMeta struct {
	IPAddress string
	UserAgent string
}

// SubmittedAnswer is one final answer carried in the submit payload. Answers
// already saved via SaveAnswer need not be repeated.
type SubmittedAnswer struct {
	QuestionID uint
	Answer     model.AnswerValue
}

// AttemptQuestionsView is the student's working view of an open attempt:
// questions without correct answers, plus whatever they have saved so far.
type AttemptQuestionsView struct {
	Attempt   *model.Attempt
	Test      *model.Test
	Questions []model.Question
	Saved     map[uint]model.QuestionAttempt // keyed by question id
}

// AttemptService owns the per-student attempt state machine:
// in_progress -> submitted | auto_submitted.
type AttemptService interface {
	// Start opens an attempt against an attemptable test, or resumes the
	// student's existing open attempt. The bool reports a resume.
	Start(ctx context.Context, studentID, testID uint, meta StartMeta) (*model.Attempt, bool, error)
	Questions(studentID, attemptID uint) (*AttemptQuestionsView, error)
	SaveAnswer(ctx context.Context, studentID, attemptID, questionID uint, answer model.AnswerValue) (*model.QuestionAttempt, error)
	Submit(ctx context.Context, studentID, attemptID uint, answers []SubmittedAnswer) (*model.Attempt, error)
	AttemptFinalizer
}

type attemptService struct {
	db             *gorm.DB
	attemptRepo    repository.AttemptRepository
	testRepo       repository.TestRepository
	questionRepo   repository.QuestionRepository
	qaRepo         repository.QuestionAttemptRepository
	enrollmentRepo repository.EnrollmentRepository
	clock          scheduler.Clock
}

func NewAttemptService(
	db *gorm.DB,
	attemptRepo repository.AttemptRepository,
	testRepo repository.TestRepository,
	questionRepo repository.QuestionRepository,
	qaRepo repository.QuestionAttemptRepository,
	enrollmentRepo repository.EnrollmentRepository,
	clock scheduler.Clock,
) AttemptService {
	return &attemptService{
		db:             db,
		attemptRepo:    attemptRepo,
		testRepo:       testRepo,
		questionRepo:   questionRepo,
		qaRepo:         qaRepo,
		enrollmentRepo: enrollmentRepo,
		clock:          clock,
	}
}

func (s *attemptService) Start(ctx context.Context, studentID, testID uint, meta StartMeta) (*model.Attempt, bool, error) {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("test %d: %w", testID, apperr.ErrNotFound)
		}
		return nil, false, fmt.Errorf("failed to load test: %w", err)
	}

	if _, err := s.enrollmentRepo.Find(studentID, test.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("course %d: %w", test.CourseID, apperr.ErrNotEnrolled)
		}
		return nil, false, fmt.Errorf("failed to check enrollment: %w", err)
	}

	existing, err := s.attemptRepo.FindByStudentAndTest(studentID, testID, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load attempts: %w", err)
	}
	for i := range existing {
		if existing[i].Status.Terminal() {
			return nil, false, fmt.Errorf("test %d already attempted: %w", testID, apperr.ErrAlreadySubmitted)
		}
	}
	for i := range existing {
		if existing[i].Status == model.AttemptInProgress {
			return &existing[i], true, nil
		}
	}

	if !test.Attemptable(s.clock.Now()) {
		return nil, false, fmt.Errorf("test %d is not open for attempts: %w", testID, apperr.ErrWindowClosed)
	}

	attempt := &model.Attempt{
		StudentID: studentID,
		TestID:    testID,
		Status:    model.AttemptInProgress,
		StartedAt: s.clock.Now(),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if err := s.db.Create(attempt).Error; err != nil {
		// A concurrent start may have won the partial unique index race;
		// resume the attempt that row belongs to.
		if isUniqueViolation(err) {
			open, ferr := s.attemptRepo.FindByStudentAndTest(studentID, testID, []model.AttemptStatus{model.AttemptInProgress})
			if ferr == nil && len(open) > 0 {
				return &open[0], true, nil
			}
		}
		return nil, false, fmt.Errorf("failed to create attempt: %w", err)
	}
	log.Info().Uint("attempt_id", attempt.ID).Uint("student_id", studentID).
		Uint("test_id", testID).Msg("attempt started")
	return attempt, false, nil
}

func (s *attemptService) Questions(studentID, attemptID uint) (*AttemptQuestionsView, error) {
	attempt, err := s.ownedAttempt(studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, fmt.Errorf("attempt %d is already closed: %w", attemptID, apperr.ErrInvalidState)
	}

	test, err := s.testRepo.FindByID(attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test: %w", err)
	}
	questions, err := s.questionRepo.FindByTestID(attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	saved, err := s.qaRepo.FindAllByAttempt(attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved answers: %w", err)
	}

	savedByQuestion := make(map[uint]model.QuestionAttempt, len(saved))
	for _, qa := range saved {
		savedByQuestion[qa.QuestionID] = qa
	}
	return &AttemptQuestionsView{
		Attempt:   attempt,
		Test:      test,
		Questions: questions,
		Saved:     savedByQuestion,
	}, nil
}

// SaveAnswer upserts one answer on an open attempt. The whole check-and-write
// runs under the attempt row lock so a concurrent submit or auto-submit
// cannot interleave.
func (s *attemptService) SaveAnswer(ctx context.Context, studentID, attemptID, questionID uint, answer model.AnswerValue) (*model.QuestionAttempt, error) {
	now := s.clock.Now()
	var saved *model.QuestionAttempt
	err := s.inTx(func(tx *gorm.DB) error {
		attempt, err := lockAttempt(tx, attemptID)
		if err != nil {
			return err
		}
		if attempt.StudentID != studentID {
			return fmt.Errorf("attempt %d: %w", attemptID, apperr.ErrNotFound)
		}
		if attempt.Status != model.AttemptInProgress {
			return fmt.Errorf("attempt %d is already closed: %w", attemptID, apperr.ErrInvalidState)
		}

		var test model.Test
		if err := tx.First(&test, attempt.TestID).Error; err != nil {
			return fmt.Errorf("failed to load test: %w", err)
		}
		if !test.Attemptable(now) {
			return fmt.Errorf("test %d is no longer open: %w", test.ID, apperr.ErrWindowClosed)
		}

		var question model.Question
		if err := tx.Where("id = ? AND test_id = ?", questionID, attempt.TestID).First(&question).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("question %d: %w", questionID, apperr.ErrNotFound)
			}
			return fmt.Errorf("failed to load question: %w", err)
		}
		if err := answer.ValidateFor(question.QuestionType); err != nil {
			return fmt.Errorf("%v: %w", err, apperr.ErrInvalidArgument)
		}

		qa, err := upsertAnswer(tx, attemptID, questionID, answer, now)
		if err != nil {
			return err
		}
		saved = qa
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// upsertAnswer writes the answer into the (attempt, question) row, tracking
// changes against the previous encoding.
func upsertAnswer(tx *gorm.DB, attemptID, questionID uint, answer model.AnswerValue, now time.Time) (*model.QuestionAttempt, error) {
	encoded := answer.Encode()
	var qa model.QuestionAttempt
	err := tx.Where("attempt_id = ? AND question_id = ?", attemptID, questionID).First(&qa).Error
	switch {
	case err == nil:
		if qa.SelectedAnswer != nil && *qa.SelectedAnswer != encoded {
			qa.AnswerChanged = true
			qa.AnswerChangeCount++
		}
		qa.SelectedAnswer = &encoded
		qa.AnsweredAt = &now
		if err := tx.Save(&qa).Error; err != nil {
			return nil, fmt.Errorf("failed to update answer: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		qa = model.QuestionAttempt{
			AttemptID:      attemptID,
			QuestionID:     questionID,
			SelectedAnswer: &encoded,
			AnsweredAt:     &now,
		}
		if err := tx.Create(&qa).Error; err != nil {
			return nil, fmt.Errorf("failed to save answer: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to load answer row: %w", err)
	}
	return &qa, nil
}

// Submit grades and closes an open attempt. Answers in the payload are
// upserted first; then every stored answer row is scored and the attempt
// aggregates are computed over all of them, atomically with the status flip.
func (s *attemptService) Submit(ctx context.Context, studentID, attemptID uint, answers []SubmittedAnswer) (*model.Attempt, error) {
	now := s.clock.Now()
	var submitted *model.Attempt
	err := s.inTx(func(tx *gorm.DB) error {
		attempt, err := lockAttempt(tx, attemptID)
		if err != nil {
			return err
		}
		if attempt.StudentID != studentID {
			return fmt.Errorf("attempt %d: %w", attemptID, apperr.ErrNotFound)
		}
		if attempt.Status != model.AttemptInProgress {
			return fmt.Errorf("attempt %d is already closed: %w", attemptID, apperr.ErrInvalidState)
		}

		var test model.Test
		if err := tx.First(&test, attempt.TestID).Error; err != nil {
			return fmt.Errorf("failed to load test: %w", err)
		}
		questions, err := questionsByID(tx, attempt.TestID)
		if err != nil {
			return err
		}

		for _, a := range answers {
			q, ok := questions[a.QuestionID]
			if !ok {
				return fmt.Errorf("question %d: %w", a.QuestionID, apperr.ErrNotFound)
			}
			if err := a.Answer.ValidateFor(q.QuestionType); err != nil {
				return fmt.Errorf("question %d: %v: %w", a.QuestionID, err, apperr.ErrInvalidArgument)
			}
			if _, err := upsertAnswer(tx, attemptID, a.QuestionID, a.Answer, now); err != nil {
				return err
			}
		}

		if err := gradeAttempt(tx, attempt, &test, questions, now, model.AttemptSubmitted); err != nil {
			return err
		}
		submitted = attempt
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Uint("attempt_id", attemptID).Float64("total_score", submitted.TotalScore).
		Float64("percentage", submitted.Percentage).Bool("passed", *submitted.Passed).
		Msg("attempt submitted")
	return submitted, nil
}

// FinalizeExpired closes every attempt still in progress against the test as
// auto_submitted, grading whatever answers were saved. Called by the
// lifecycle service after the completion deadline fires.
func (s *attemptService) FinalizeExpired(ctx context.Context, testID uint) (int, error) {
	var ids []uint
	if err := s.db.Model(&model.Attempt{}).
		Where("test_id = ? AND status = ?", testID, model.AttemptInProgress).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to list open attempts: %w", err)
	}

	finalized := 0
	for _, attemptID := range ids {
		id := attemptID
		err := s.inTx(func(tx *gorm.DB) error {
			attempt, err := lockAttempt(tx, id)
			if err != nil {
				return err
			}
			if attempt.Status != model.AttemptInProgress {
				return nil
			}
			var test model.Test
			if err := tx.First(&test, attempt.TestID).Error; err != nil {
				return fmt.Errorf("failed to load test: %w", err)
			}
			questions, err := questionsByID(tx, attempt.TestID)
			if err != nil {
				return err
			}
			if err := gradeAttempt(tx, attempt, &test, questions, s.clock.Now(), model.AttemptAutoSubmitted); err != nil {
				return err
			}
			finalized++
			return nil
		})
		if err != nil {
			log.Error().Err(err).Uint("attempt_id", id).Msg("failed to auto-submit attempt")
		}
	}
	return finalized, nil
}

// gradeAttempt scores every stored answer row, aggregates the attempt and
// flips it to the given terminal status. Runs inside the caller's
// transaction with the attempt row locked.
func gradeAttempt(tx *gorm.DB, attempt *model.Attempt, test *model.Test, questions map[uint]*model.Question, now time.Time, status model.AttemptStatus) error {
	var rows []model.QuestionAttempt
	if err := tx.Where("attempt_id = ?", attempt.ID).Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load answer rows: %w", err)
	}

	totalScore := 0.0
	for i := range rows {
		q, ok := questions[rows[i].QuestionID]
		if !ok {
			continue
		}
		result := scoring.Score(q, rows[i].SelectedAnswer)
		rows[i].IsCorrect = &result.IsCorrect
		rows[i].MarksObtained = result.MarksObtained
		if err := tx.Model(&model.QuestionAttempt{}).Where("id = ?", rows[i].ID).
			Updates(map[string]interface{}{
				"is_correct":     result.IsCorrect,
				"marks_obtained": result.MarksObtained,
			}).Error; err != nil {
			return fmt.Errorf("failed to store score: %w", err)
		}
		totalScore += result.MarksObtained
	}

	percentage := 0.0
	if test.TotalMarks > 0 {
		percentage = round2(totalScore / test.TotalMarks * 100)
	}
	passed := totalScore >= test.PassingMarks
	taken := int(now.Sub(attempt.StartedAt).Seconds())
	if taken < 0 {
		taken = 0
	}

	attempt.Status = status
	attempt.SubmittedAt = &now
	attempt.TotalScore = totalScore
	attempt.Percentage = percentage
	attempt.Passed = &passed
	attempt.TimeTakenSeconds = taken
	if err := tx.Save(attempt).Error; err != nil {
		return fmt.Errorf("failed to close attempt: %w", err)
	}
	return nil
}

func questionsByID(tx *gorm.DB, testID uint) (map[uint]*model.Question, error) {
	var questions []model.Question
	if err := tx.Where("test_id = ?", testID).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	byID := make(map[uint]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}
	return byID, nil
}

func (s *attemptService) ownedAttempt(studentID, attemptID uint) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("attempt %d: %w", attemptID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, fmt.Errorf("attempt %d: %w", attemptID, apperr.ErrNotFound)
	}
	return attempt, nil
}

func lockAttempt(tx *gorm.DB, attemptID uint) (*model.Attempt, error) {
	var attempt model.Attempt
	if err := repository.ForUpdate(tx).First(&attempt, attemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("attempt %d: %w", attemptID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock attempt: %w", err)
	}
	return &attempt, nil
}

func (s *attemptService) inTx(fn func(tx *gorm.DB) error) error {
	err := s.db.Transaction(fn)
	if err != nil && isLockConflict(err) {
		log.Warn().Err(err).Msg("transaction hit lock conflict, retrying once")
		err = s.db.Transaction(fn)
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique index")
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
