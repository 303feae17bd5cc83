package models

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// User is the external identity the feed consumes. Only id, display name and
// profile URL are used by the rendering layer.
type User struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Username    string    `json:"username" gorm:"size:50;uniqueIndex"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email" gorm:"uniqueIndex"`
	ProfileURL  string    `json:"profile_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserCompact is the projection embedded in feed responses
type UserCompact struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	ProfileURL  string `json:"profile_url"`
}

// ToCompact converts a User to its compact projection
func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		ProfileURL:  u.ProfileURL,
	}
}

// DisplayKind returns the kind label used in rendered activity text.
func (u *User) DisplayKind() string {
	return "user"
}

// DisplayLabel returns the name shown in rendered activity text, falling
// back to the username.
func (u *User) DisplayLabel() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// AbsoluteURL returns the user's profile URL.
func (u *User) AbsoluteURL() string {
	if u.ProfileURL != "" {
		return u.ProfileURL
	}
	return fmt.Sprintf("/users/%d", u.ID)
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
