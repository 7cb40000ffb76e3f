package model

import (
	"time"
)

// TestStatus moves monotonically along
// not_published -> published -> active -> completed.
type TestStatus string

const (
	TestNotPublished TestStatus = "not_published"
	TestPublished    TestStatus = "published"
	TestActive       TestStatus = "active"
	TestCompleted    TestStatus = "completed"
)

// Rank orders statuses along the lifecycle; transitions never decrease it.
func (s TestStatus) Rank() int {
	switch s {
	case TestNotPublished:
		return 0
	case TestPublished:
		return 1
	case TestActive:
		return 2
	case TestCompleted:
		return 3
	default:
		return -1
	}
}

type Test struct {
	ID              uint       `gorm:"primarykey" json:"test_id"`
	CourseID        uint       `json:"course_id" gorm:"not null;index"`
	TeacherID       uint       `json:"teacher_id" gorm:"not null;index"`
	Title           string     `json:"title" gorm:"not null"`
	Description     string     `json:"description,omitempty"`
	DifficultyLevel string     `json:"difficulty_level"`
	Status          TestStatus `json:"status" gorm:"not null;default:'not_published';index"`
	StartTime       *time.Time `json:"start_time,omitempty"` // set on publish, nil only while not_published
	DurationMinutes int        `json:"duration_minutes" gorm:"not null"`
	TotalQuestions  int        `json:"total_questions" gorm:"not null;default:0"`
	TotalMarks      float64    `json:"total_marks" gorm:"not null;default:0"`
	PassingMarks    float64    `json:"passing_marks" gorm:"not null;default:0"`
	Questions       []Question `json:"questions,omitempty" gorm:"foreignKey:TestID"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// EndTime is start_time + duration; the zero time while unpublished.
func (t *Test) EndTime() time.Time {
	if t.StartTime == nil {
		return time.Time{}
	}
	return t.StartTime.Add(time.Duration(t.DurationMinutes) * time.Minute)
}

// Attemptable reports whether the test accepts new attempts and answer saves
// at the given instant: either the scheduler already flipped it to active, or
// it is published and now falls inside [start_time, start_time+duration].
// The second arm covers the gap before the activate job fires.
func (t *Test) Attemptable(now time.Time) bool {
	if t.Status == TestActive {
		return true
	}
	if t.Status != TestPublished || t.StartTime == nil {
		return false
	}
	return !now.Before(*t.StartTime) && !now.After(t.EndTime())
}
