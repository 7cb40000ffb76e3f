package student

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quickquiz/quickquiz/internal/auth"
	"github.com/quickquiz/quickquiz/internal/controller"
	"github.com/quickquiz/quickquiz/internal/dto"
	"github.com/quickquiz/quickquiz/internal/model"
	"github.com/quickquiz/quickquiz/internal/service"
	"github.com/rs/zerolog/log"
)

// StudentController is the student-facing surface: course enrollment, test
// discovery, the attempt flow and result views.
type StudentController struct {
	enrollment service.EnrollmentService
	attempts   service.AttemptService
	analytics  service.AnalyticsService
}

func NewStudentController(
	enrollment service.EnrollmentService,
	attempts service.AttemptService,
	analytics service.AnalyticsService,
) *StudentController {
	return &StudentController{enrollment: enrollment, attempts: attempts, analytics: analytics}
}

// AvailableCourses godoc
// @Summary (Student) List courses open for enrollment
// @Tags Student - Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.CourseResponse
// @Router /student/courses/available [get]
func (ctl *StudentController) AvailableCourses(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	courses, err := ctl.enrollment.AvailableCourses(identity.UserID)
	if err != nil {
		controller.RespondError(c, err, "Failed to list courses")
		return
	}
	c.JSON(http.StatusOK, dto.NewCourseResponses(courses))
}

// MyCourses godoc
// @Summary (Student) List enrolled courses
// @Tags Student - Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.CourseResponse
// @Router /student/courses [get]
func (ctl *StudentController) MyCourses(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	courses, err := ctl.enrollment.EnrolledCourses(identity.UserID)
	if err != nil {
		controller.RespondError(c, err, "Failed to list courses")
		return
	}
	c.JSON(http.StatusOK, dto.NewCourseResponses(courses))
}

// Enroll godoc
// @Summary (Student) Enroll in a course
// @Description Idempotent: enrolling again in the same course is a no-op.
// @Tags Student - Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param enroll_data body dto.EnrollRequest true "Course to enroll in"
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} dto.ErrorResponse "Course not found"
// @Router /student/courses/enroll [post]
func (ctl *StudentController) Enroll(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	if err := ctl.enrollment.Enroll(identity.UserID, req.CourseID); err != nil {
		controller.RespondError(c, err, "Failed to enroll")
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "enrolled"})
}

// Unenroll godoc
// @Summary (Student) Leave a course
// @Tags Student - Courses
// @Security BearerAuth
// @Param course_id path int true "Course ID"
// @Success 204 "No Content"
// @Failure 404 {object} dto.ErrorResponse "Not enrolled"
// @Router /student/courses/{course_id} [delete]
func (ctl *StudentController) Unenroll(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	courseID, ok := controller.ParseIDParam(c, "course_id")
	if !ok {
		return
	}
	if err := ctl.enrollment.Unenroll(identity.UserID, courseID); err != nil {
		controller.RespondError(c, err, "Failed to unenroll")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTests godoc
// @Summary (Student) List tests across enrolled courses
// @Description Every published, active or completed test the student can see, flagged with whether an attempt can be started or resumed.
// @Tags Student - Tests
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.StudentTestView
// @Router /student/tests [get]
func (ctl *StudentController) ListTests(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	views, err := ctl.analytics.ListAttemptableTests(identity.UserID)
	if err != nil {
		controller.RespondError(c, err, "Failed to list tests")
		return
	}
	c.JSON(http.StatusOK, views)
}

// StartAttempt godoc
// @Summary (Student) Start or resume an attempt
// @Description Opens an attempt against an attemptable test; if the student already has an open attempt it is resumed instead.
// @Tags Student - Attempts
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 201 {object} dto.StartAttemptResponse
// @Failure 403 {object} dto.ErrorResponse "Outside the test window or not enrolled"
// @Failure 409 {object} dto.ErrorResponse "Already submitted"
// @Router /student/tests/{test_id}/attempts [post]
func (ctl *StudentController) StartAttempt(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	testID, ok := controller.ParseIDParam(c, "test_id")
	if !ok {
		return
	}

	attempt, resumed, err := ctl.attempts.Start(c.Request.Context(), identity.UserID, testID, service.StartMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		controller.RespondError(c, err, "Failed to start attempt")
		return
	}

	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	c.JSON(status, dto.StartAttemptResponse{Attempt: dto.NewAttemptResponse(attempt), Resumed: resumed})
}

// AttemptQuestions godoc
// @Summary (Student) Questions of an open attempt
// @Description The test's questions without correct answers, plus the student's saved answers so far.
// @Tags Student - Attempts
// @Produce json
// @Security BearerAuth
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptQuestionsResponse
// @Failure 409 {object} dto.ErrorResponse "Attempt already closed"
// @Router /student/attempts/{attempt_id}/questions [get]
func (ctl *StudentController) AttemptQuestions(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	attemptID, ok := controller.ParseIDParam(c, "attempt_id")
	if !ok {
		return
	}
	view, err := ctl.attempts.Questions(identity.UserID, attemptID)
	if err != nil {
		controller.RespondError(c, err, "Failed to load attempt questions")
		return
	}
	c.JSON(http.StatusOK, dto.NewAttemptQuestionsResponse(view))
}

// SaveAnswer godoc
// @Summary (Student) Save one answer
// @Description Upserts the answer for a question of an open attempt. Changing a previously saved answer is tracked.
// @Tags Student - Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attempt_id path int true "Attempt ID"
// @Param answer_data body dto.SaveAnswerRequest true "Question and answer value"
// @Success 200 {object} dto.SavedAnswerResponse
// @Failure 400 {object} dto.ErrorResponse "Answer shape does not fit the question type"
// @Failure 403 {object} dto.ErrorResponse "Test window closed"
// @Failure 409 {object} dto.ErrorResponse "Attempt already closed"
// @Router /student/attempts/{attempt_id}/answers [put]
func (ctl *StudentController) SaveAnswer(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	attemptID, ok := controller.ParseIDParam(c, "attempt_id")
	if !ok {
		return
	}
	var req dto.SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	answer, err := model.ParseAnswer(string(req.Answer))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid answer value", Details: []string{err.Error()}})
		return
	}

	qa, err := ctl.attempts.SaveAnswer(c.Request.Context(), identity.UserID, attemptID, req.QuestionID, answer)
	if err != nil {
		controller.RespondError(c, err, "Failed to save answer")
		return
	}
	c.JSON(http.StatusOK, dto.NewSavedAnswerResponse(qa))
}

// SubmitAttempt godoc
// @Summary (Student) Submit an attempt
// @Description Grades every saved answer plus any carried in the payload, closes the attempt and returns the result.
// @Tags Student - Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attempt_id path int true "Attempt ID"
// @Param submission body dto.SubmitAttemptRequest false "Final answers (optional)"
// @Success 200 {object} dto.AttemptResponse
// @Failure 409 {object} dto.ErrorResponse "Attempt already closed"
// @Router /student/attempts/{attempt_id}/submit [post]
func (ctl *StudentController) SubmitAttempt(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	attemptID, ok := controller.ParseIDParam(c, "attempt_id")
	if !ok {
		return
	}
	// An empty body is a valid submission of whatever was saved.
	var req dto.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	answers := make([]service.SubmittedAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		value, err := model.ParseAnswer(string(a.Answer))
		if err != nil {
			log.Warn().Err(err).Uint("question_id", a.QuestionID).Msg("SubmitAttempt: unparseable answer")
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid answer value", Details: []string{err.Error()}})
			return
		}
		answers = append(answers, service.SubmittedAnswer{QuestionID: a.QuestionID, Answer: value})
	}

	attempt, err := ctl.attempts.Submit(c.Request.Context(), identity.UserID, attemptID, answers)
	if err != nil {
		controller.RespondError(c, err, "Failed to submit attempt")
		return
	}
	c.JSON(http.StatusOK, dto.NewAttemptResponse(attempt))
}

// AttemptSummary godoc
// @Summary (Student) Graded breakdown of a closed attempt
// @Description Per-question results including correct answers. Only available once the attempt is submitted or auto-submitted.
// @Tags Student - Results
// @Produce json
// @Security BearerAuth
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} service.AttemptSummary
// @Failure 409 {object} dto.ErrorResponse "Attempt still in progress"
// @Router /student/attempts/{attempt_id} [get]
func (ctl *StudentController) AttemptSummary(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	attemptID, ok := controller.ParseIDParam(c, "attempt_id")
	if !ok {
		return
	}
	summary, err := ctl.analytics.AttemptSummary(identity.UserID, attemptID)
	if err != nil {
		controller.RespondError(c, err, "Failed to load attempt summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// MyResults godoc
// @Summary (Student) Results history
// @Tags Student - Results
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.StudentResult
// @Router /student/results [get]
func (ctl *StudentController) MyResults(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	results, err := ctl.analytics.StudentResults(identity.UserID)
	if err != nil {
		controller.RespondError(c, err, "Failed to load results")
		return
	}
	c.JSON(http.StatusOK, results)
}
