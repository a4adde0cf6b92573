// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// User represents a TaskHub account.
type User struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	Username                string     `gorm:"size:30;uniqueIndex;not null" json:"username"`
	Email                   string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordDigest          string     `gorm:"column:password_digest;not null" json:"-"`
	Public                  bool       `gorm:"not null" json:"public"`
	EmailVerificationToken  *string    `gorm:"size:64;uniqueIndex" json:"-"`
	EmailVerificationSentAt *time.Time `json:"-"`
	EmailVerifiedAt         *time.Time `json:"email_verified_at,omitempty"`
	PasswordResetToken      *string    `gorm:"size:64;uniqueIndex" json:"-"`
	PasswordResetSentAt     *time.Time `json:"-"`
	GoogleSubject           *string    `gorm:"size:255;uniqueIndex" json:"-"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// DisplayName is the username, falling back to the local part of the email.
func (u *User) DisplayName() string {
	if strings.TrimSpace(u.Username) != "" {
		return u.Username
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// EmailVerified reports whether the user confirmed their email address.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// PasswordResetValid reports whether a reset token issued to u is still usable at now.
func (u *User) PasswordResetValid(now time.Time, ttl time.Duration) bool {
	return u.PasswordResetToken != nil && u.PasswordResetSentAt != nil &&
		u.PasswordResetSentAt.After(now.Add(-ttl))
}

// UserSummary is the compact user shape embedded in social responses.
type UserSummary struct {
	ID          uint    `json:"id"`
	Username    string  `json:"username"`
	Email       *string `json:"email"`
	DisplayName string  `json:"display_name"`
	Public      bool    `json:"public"`
}

// Summary renders u for other users. Email is only exposed for public profiles.
func (u *User) Summary() UserSummary {
	s := UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName(),
		Public:      u.Public,
	}
	if u.Public {
		email := u.Email
		s.Email = &email
	}
	return s
}

// AuthorSummary is the author block embedded in posts and comments.
type AuthorSummary struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Author renders u as a post/comment author.
func (u *User) Author() AuthorSummary {
	return AuthorSummary{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName()}
}

// AccountView is the shape returned to the account owner by auth endpoints.
type AccountView struct {
	ID            uint      `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Public        bool      `json:"public"`
	CreatedAt     time.Time `json:"created_at"`
}

// Account renders u for its owner.
func (u *User) Account() AccountView {
	return AccountView{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified(),
		Public:        u.Public,
		CreatedAt:     u.CreatedAt,
	}
}
