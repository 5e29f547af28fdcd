package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User represents an account in the user directory.
// Only the fields the chat core reads are modeled here; the wider
// admission-management profile lives behind other services.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Name         string    `gorm:"column:name;size:100" json:"name"`
	Email        string    `gorm:"column:email;size:255;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;size:255" json:"-"`
	Role         string    `gorm:"column:role;size:20;index" json:"role"`
	IsVerified   bool      `gorm:"column:is_verified" json:"is_verified"`
	ProfileImage string    `gorm:"column:profile_image;size:500" json:"profile_image,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns a UUID primary key
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// UserPublic is the public-safe projection of a user, embedded in
// message and conversation responses. No email, no credentials.
type UserPublic struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// ToPublic converts a User to its public projection
func (u *User) ToPublic() *UserPublic {
	return &UserPublic{
		ID:           u.ID,
		Name:         u.Name,
		Role:         u.Role,
		ProfileImage: u.ProfileImage,
	}
}
