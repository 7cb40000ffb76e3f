package model

import (
	"time"
)

// AttemptStatus moves from in_progress to exactly one of submitted (the
// student handed it in) or auto_submitted (the completion deadline fired
// while the attempt was still open). Both are terminal.
type AttemptStatus string

const (
	AttemptInProgress    AttemptStatus = "in_progress"
	AttemptSubmitted     AttemptStatus = "submitted"
	AttemptAutoSubmitted AttemptStatus = "auto_submitted"
)

func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptAutoSubmitted
}

// Attempt is one student's interaction with one test. A partial unique index
// on (student_id, test_id) WHERE status='in_progress' (created alongside
// AutoMigrate) guarantees at most one open attempt per lineage even under
// concurrent starts. Attempts are never deleted except by cascading test
// deletion.
type Attempt struct {
	ID               uint              `gorm:"primarykey" json:"attempt_id"`
	StudentID        uint              `json:"student_id" gorm:"not null;index:idx_attempts_student_test"`
	TestID           uint              `json:"test_id" gorm:"not null;index:idx_attempts_student_test"`
	Test             Test              `json:"-" gorm:"foreignKey:TestID"`
	Status           AttemptStatus     `json:"status" gorm:"not null;default:'in_progress'"`
	StartedAt        time.Time         `json:"started_at" gorm:"autoCreateTime"`
	SubmittedAt      *time.Time        `json:"submitted_at,omitempty"`
	TotalScore       float64           `json:"total_score"`
	Percentage       float64           `json:"percentage"`
	Passed           *bool             `json:"passed,omitempty"` // nil until graded
	TimeTakenSeconds int               `json:"time_taken_seconds"`
	IPAddress        string            `json:"-"`
	UserAgent        string            `json:"-"`
	QuestionAttempts []QuestionAttempt `json:"question_attempts,omitempty" gorm:"foreignKey:AttemptID"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
