package dto

import "time"

type CreateTestRequest struct {
	CourseID        uint    `json:"course_id" binding:"required"`
	Title           string  `json:"title" binding:"required"`
	Description     string  `json:"description"`
	DifficultyLevel string  `json:"difficulty_level" binding:"required,oneof=easy medium hard"`
	NumQuestions    int     `json:"num_questions" binding:"required,min=1"`
	DurationMinutes int     `json:"duration_minutes" binding:"required,min=1"`
	TotalMarks      float64 `json:"total_marks" binding:"required,gt=0"`
	PassingMarks    float64 `json:"passing_marks" binding:"gte=0"`
}

type PublishTestRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
}

// ExtendDurationRequest shifts a published or active test's duration by
// DeltaMinutes; negative values shrink the window.
type ExtendDurationRequest struct {
	DeltaMinutes int `json:"delta_minutes" binding:"required"`
}

// EditStructureRequest adds generated questions and/or removes trailing ones
// while the test is still unpublished. TotalMarks optionally replaces the
// test's mark total before recalibration.
type EditStructureRequest struct {
	AddCount    int      `json:"add_count" binding:"gte=0"`
	RemoveCount int      `json:"remove_count" binding:"gte=0"`
	TotalMarks  *float64 `json:"total_marks"`
}
