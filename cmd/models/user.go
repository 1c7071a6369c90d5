package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is stored with a trimmed, lowercased email; the unique index on that
// column is what makes email uniqueness case-insensitive.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FullName     string    `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email        string    `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	Phone        *string   `gorm:"column:phone;size:32" json:"phone,omitempty"`
	Role         string    `gorm:"column:role;size:50;not null;default:user" json:"role"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
