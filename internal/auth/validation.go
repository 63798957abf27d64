package auth

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Passwords that clear the length floor but show up in every breach
// corpus anyway.
var knownWeakPasswords = map[string]struct{}{
	"password1234": {},
	"123456789012": {},
	"qwertyuiopas": {},
}

const defaultPasswordFloor = 12

// ValidatePassword checks the admin password against NIST 800-63B
// style rules: a length floor, a length cap to bound hashing cost, and
// no character class requirements. It runs at boot, before the
// plaintext is hashed.
func ValidatePassword(password string, minLength int) error {
	if minLength <= 0 {
		minLength = defaultPasswordFloor
	}

	switch {
	case len(password) < minLength:
		return fmt.Errorf("password must be %d characters or longer", minLength)
	case len(password) > 128:
		return fmt.Errorf("password is longer than 128 characters")
	}

	if _, weak := knownWeakPasswords[strings.ToLower(password)]; weak {
		return fmt.Errorf("password is too common")
	}
	if singleRune(password) {
		return fmt.Errorf("password cannot be one repeated character")
	}

	return nil
}

// singleRune reports whether s is one rune repeated.
func singleRune(s string) bool {
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return strings.Trim(s, string(r)) == ""
}
