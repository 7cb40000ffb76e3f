package model

import "time"

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User exists only at the authorization boundary: registration and login live
// elsewhere, the JWT middleware yields (id, role) from credentials issued
// there.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"not null;uniqueIndex"`
	Role      string    `json:"role" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
