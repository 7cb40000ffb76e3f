package model

import "time"

type Course struct {
	ID               uint      `gorm:"primarykey" json:"course_id"`
	TeacherID        uint      `json:"teacher_id" gorm:"not null;index"`
	CourseName       string    `json:"course_name" gorm:"not null"`
	CourseLevel      string    `json:"course_level"`
	CourseObjectives string    `json:"course_objectives,omitempty" gorm:"type:text"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Enrollment maps a student onto a course; enrollment gates attempt starts
// and test listings.
type Enrollment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	StudentID uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_student_course"`
	CourseID  uint      `json:"course_id" gorm:"not null;uniqueIndex:idx_student_course"`
	TakenAt   time.Time `json:"taken_at" gorm:"autoCreateTime"`
}
