package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MinPasswordLength matches the auth provider's weak-password threshold.
	MinPasswordLength = 6
	MaxPasswordLength = 128
	MaxDisplayName    = 50
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	ErrInvalidEmail  = errors.New("invalid email format")
	ErrWeakPassword  = fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	ErrLongPassword  = fmt.Errorf("password must not exceed %d characters", MaxPasswordLength)
	ErrPasswordMatch = errors.New("passwords do not match")
)

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > 254 || !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword checks the length rules accepted by sign-up.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return ErrWeakPassword
	}
	if n > MaxPasswordLength {
		return ErrLongPassword
	}
	return nil
}

// ValidatePasswordConfirmation checks the password and its confirmation agree.
func ValidatePasswordConfirmation(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMatch
	}
	return nil
}

// ValidateDisplayName allows any non-blank name up to MaxDisplayName runes.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("display name is required")
	}
	if utf8.RuneCountInString(name) > MaxDisplayName {
		return fmt.Errorf("display name must not exceed %d characters", MaxDisplayName)
	}
	return nil
}
