package models

import "time"

// Role values recognised by the API.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleTA         = "ta"
)

// User represents an account that can author assignments, submit work or review grades.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:32;not null" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanGrade reports whether the user may review grades or trigger regrades.
func (u User) CanGrade() bool {
	return u.Role == RoleInstructor || u.Role == RoleTA
}
