// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Account field bounds. MaxPasswordBytes is bcrypt's input limit.
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MaxEmailLength    = 254
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)
)


// ValidatePassword checks the password length. The minimum counts characters,
// the maximum counts bytes.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordBytes)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password can't be blank")
	}
	return nil
}

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, underscores, dots, and hyphens")
	}
	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("email is invalid")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateAccount runs every signup rule and returns all failures.
func ValidateAccount(username, email, password string) []string {
	var errs []string
	if err := ValidateUsername(username); err != nil {
		errs = append(errs, err.Error())
	}
	if err := ValidateEmail(email); err != nil {
		errs = append(errs, err.Error())
	}
	if err := ValidatePassword(password); err != nil {
		errs = append(errs, err.Error())
	}
	return errs
}
