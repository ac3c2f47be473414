package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Length limits, in runes unless noted
const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bytes; bcrypt ignores the rest
	MaxIDLength       = 128
	MaxTitleLength    = 256
	MaxMessageLength  = 16 * 1024
)

var (
	idChars       = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	usernameChars = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// ValidateString checks a field's length bounds and rejects NUL bytes. An
// empty optional field is always valid.
func ValidateString(value, field string, minLen, maxLen int, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	if strings.IndexByte(value, 0) >= 0 {
		return fmt.Errorf("%s contains a NUL byte", field)
	}
	switch n := utf8.RuneCountInString(value); {
	case n < minLen:
		return fmt.Errorf("%s is shorter than %d characters", field, minLen)
	case n > maxLen:
		return fmt.Errorf("%s is longer than %d characters", field, maxLen)
	}
	return nil
}

// ValidateID checks a path or body id: letters, digits, '-' and '_'
func ValidateID(id, field string, required bool) error {
	if err := ValidateString(id, field, 1, MaxIDLength, required); err != nil {
		return err
	}
	if id != "" && !idChars.MatchString(id) {
		return fmt.Errorf("%s may only hold letters, digits, '-' and '_'", field)
	}
	return nil
}

// ValidateUsername checks a local account name
func ValidateUsername(username string) error {
	if err := ValidateString(username, "username", MinUsernameLength, MaxUsernameLength, true); err != nil {
		return err
	}
	if !usernameChars.MatchString(username) {
		return fmt.Errorf("username may only hold letters, digits and '_'")
	}
	return nil
}

// ValidatePassword checks a local account password
func ValidatePassword(password string) error {
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password is longer than %d bytes", MaxPasswordLength)
	}
	return ValidateString(password, "password", MinPasswordLength, MaxPasswordLength, true)
}

// ValidateTitle checks an optional page title
func ValidateTitle(title string) error {
	return ValidateString(title, "title", 0, MaxTitleLength, false)
}

// ValidateMessage checks a chat message; whitespace alone is empty
func ValidateMessage(msg string) error {
	return ValidateString(strings.TrimSpace(msg), "message", 1, MaxMessageLength, true)
}
