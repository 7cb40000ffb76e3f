package model

import (
	"time"
)

// QuestionAttempt holds one student's answer to one question within an
// attempt; (attempt_id, question_id) is unique and save_answer upserts it.
// IsCorrect stays nil until submit-time scoring.
type QuestionAttempt struct {
	ID                uint       `gorm:"primarykey" json:"id"`
	AttemptID         uint       `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID        uint       `json:"question_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	Question          Question   `json:"-" gorm:"foreignKey:QuestionID"`
	SelectedAnswer    *string    `json:"selected_answer,omitempty" gorm:"type:text"` // AnswerValue JSON
	IsCorrect         *bool      `json:"is_correct,omitempty"`
	MarksObtained     float64    `json:"marks_obtained"`
	AnsweredAt        *time.Time `json:"answered_at,omitempty"`
	AnswerChanged     bool       `json:"answer_changed"`
	AnswerChangeCount int        `json:"answer_change_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
