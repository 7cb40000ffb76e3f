package teacher

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quickquiz/quickquiz/internal/auth"
	"github.com/quickquiz/quickquiz/internal/controller"
	"github.com/quickquiz/quickquiz/internal/dto"
	"github.com/quickquiz/quickquiz/internal/service"
	"github.com/rs/zerolog/log"
)

// TestController is the teacher-facing surface of the test lifecycle:
// authoring, publishing, duration changes, structure edits, deletion and
// per-test analytics.
type TestController struct {
	lifecycle service.TestLifecycleService
	analytics service.AnalyticsService
}

func NewTestController(lifecycle service.TestLifecycleService, analytics service.AnalyticsService) *TestController {
	return &TestController{lifecycle: lifecycle, analytics: analytics}
}

// CreateTest godoc
// @Summary (Teacher) Create a test with generated questions
// @Description Creates a draft test for a course. Questions are generated from the course material and marks calibrated to the total.
// @Tags Teacher - Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test_data body dto.CreateTestRequest true "Test parameters"
// @Success 201 {object} dto.TestResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 404 {object} dto.ErrorResponse "Course not found"
// @Router /teacher/tests [post]
func (ctl *TestController) CreateTest(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	var req dto.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("CreateTest: failed to bind request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	test, err := ctl.lifecycle.CreateTest(c.Request.Context(), identity.UserID, service.CreateTestInput{
		CourseID:        req.CourseID,
		Title:           req.Title,
		Description:     req.Description,
		DifficultyLevel: req.DifficultyLevel,
		NumQuestions:    req.NumQuestions,
		DurationMinutes: req.DurationMinutes,
		TotalMarks:      req.TotalMarks,
		PassingMarks:    req.PassingMarks,
	})
	if err != nil {
		controller.RespondError(c, err, "Failed to create test")
		return
	}
	c.JSON(http.StatusCreated, dto.NewTestResponse(test))
}

// ListTests godoc
// @Summary (Teacher) List own tests
// @Tags Teacher - Tests
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.TestResponse
// @Router /teacher/tests [get]
func (ctl *TestController) ListTests(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	tests, err := ctl.lifecycle.ListByTeacher(identity.UserID)
	if err != nil {
		controller.RespondError(c, err, "Failed to list tests")
		return
	}
	c.JSON(http.StatusOK, dto.NewTestResponses(tests))
}

// GetTest godoc
// @Summary (Teacher) Get one of own tests with questions
// @Tags Teacher - Tests
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 200 {object} model.Test
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /teacher/tests/{test_id} [get]
func (ctl *TestController) GetTest(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	testID, ok := controller.ParseIDParam(c, "test_id")
	if !ok {
		return
	}
	test, err := ctl.lifecycle.GetTest(identity.UserID, testID)
	if err != nil {
		controller.RespondError(c, err, "Failed to load test")
		return
	}
	c.JSON(http.StatusOK, test)
}

// PublishTest godoc
// @Summary (Teacher) Publish a test
// @Description Pins the start time and schedules activation and completion. Only draft tests with a future start time can be published.
// @Tags Teacher - Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param publish_data body dto.PublishTestRequest true "Start time"
// @Success 200 {object} dto.TestResponse
// @Failure 400 {object} dto.ErrorResponse "Start time not in the future"
// @Failure 409 {object} dto.ErrorResponse "Test is not a draft"
// @Router /teacher/tests/{test_id}/publish [post]
func (ctl *TestController) PublishTest(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	testID, ok := controller.ParseIDParam(c, "test_id")
	if !ok {
		return
	}
	var req dto.PublishTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	test, err := ctl.lifecycle.Publish(c.Request.Context(), identity.UserID, testID, req.StartTime)
	if err != nil {
		controller.RespondError(c, err, "Failed to publish test")
		return
	}
	c.JSON(http.StatusOK, dto.NewTestResponse(test))
}

// ExtendDuration godoc
// @Summary (Teacher) Change a test's duration
// @Description Shifts the duration of a published or active test by a delta in minutes (negative shrinks). The new end time must stay in the future.
// @Tags Teacher - Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param duration_data body dto.ExtendDurationRequest true "Duration delta in minutes"
// @Success 200 {object} dto.TestResponse
// @Failure 400 {object} dto.ErrorResponse "Duration would drop to zero or end time in the past"
// @Failure 409 {object} dto.ErrorResponse "Test is a draft or already completed"
// @Router /teacher/tests/{test_id}/duration [put]
func (ctl *TestController) ExtendDuration(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	testID, ok := controller.ParseIDParam(c, "test_id")
	if !ok {
		return
	}
	var req dto.ExtendDurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	test, err := ctl.lifecycle.ExtendDuration(c.Request.Context(), identity.UserID, testID, req.DeltaMinutes)
	if err != nil {
		controller.RespondError(c, err, "Failed to change duration")
		return
	}
	c.JSON(http.StatusOK, dto.NewTestResponse(test))
}

// EditStructure godoc
// @Summary (Teacher) Edit an unpublished test's structure
// @Description Adds generated questions and/or removes trailing ones, then recalibrates all marks.
// @Tags Teacher - Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param edit_data body dto.EditStructureRequest true "Structure changes"
// @Success 200 {object} dto.TestResponse
// @Failure 409 {object} dto.ErrorResponse "Test is no longer a draft"
// @Router /teacher/tests/{test_id}/structure [put]
func (ctl *TestController) EditStructure(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	testID, ok := controller.ParseIDParam(c, "test_id")
	if !ok {
		return
	}
	var req dto.EditStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	test, err := ctl.lifecycle.EditStructure(c.Request.Context(), identity.UserID, testID, service.EditStructureInput{
		AddCount:    req.AddCount,
		RemoveCount: req.RemoveCount,
		TotalMarks:  req.TotalMarks,
	})
	if err != nil {
		controller.RespondError(c, err, "Failed to edit test structure")
		return
	}
	c.JSON(http.StatusOK, dto.NewTestResponse(test))
}

// DeleteTest godoc
// @Summary (Teacher) Delete a test
// @Description Removes the test together with its questions and every attempt against it. Pending timers are canceled.
// @Tags Teacher - Tests
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 204 "No Content"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /teacher/tests/{test_id} [delete]
func (ctl *TestController) DeleteTest(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	testID, ok := controller.ParseIDParam(c, "test_id")
	if !ok {
		return
	}
	if err := ctl.lifecycle.Delete(c.Request.Context(), identity.UserID, testID); err != nil {
		controller.RespondError(c, err, "Failed to delete test")
		return
	}
	c.Status(http.StatusNoContent)
}

// TestAnalytics godoc
// @Summary (Teacher) Aggregate results for a test
// @Description Mean/median/stddev of percentages, pass count, and per-tag and per-difficulty accuracy over all graded attempts.
// @Tags Teacher - Analytics
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 200 {object} service.TestAnalytics
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /teacher/tests/{test_id}/analytics [get]
func (ctl *TestController) TestAnalytics(c *gin.Context) {
	identity, _ := auth.CurrentUser(c)
	testID, ok := controller.ParseIDParam(c, "test_id")
	if !ok {
		return
	}
	analytics, err := ctl.analytics.TestAnalytics(identity.UserID, testID)
	if err != nil {
		controller.RespondError(c, err, "Failed to compute analytics")
		return
	}
	c.JSON(http.StatusOK, analytics)
}
