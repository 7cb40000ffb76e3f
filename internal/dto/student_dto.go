package dto

import "encoding/json"

type EnrollRequest struct {
	CourseID uint `json:"course_id" binding:"required"`
}

// SaveAnswerRequest carries one answer. Answer is the raw JSON answer value:
// "B" for mcq, ["A","C"] for msq, a number for nat.
type SaveAnswerRequest struct {
	QuestionID uint            `json:"question_id" binding:"required"`
	Answer     json.RawMessage `json:"answer" binding:"required"`
}

type SubmittedAnswerRequest struct {
	QuestionID uint            `json:"question_id" binding:"required"`
	Answer     json.RawMessage `json:"answer" binding:"required"`
}

// SubmitAttemptRequest closes an attempt. Answers is optional: anything
// already saved via the save endpoint is graded regardless.
type SubmitAttemptRequest struct {
	Answers []SubmittedAnswerRequest `json:"answers" binding:"omitempty,dive"`
}
