package consolelogin

import (
	"strings"
	"unicode/utf8"
)

const minPhoneLength = 7

// IsEmail reports whether s looks like an email address. Any string
// containing '@' qualifies; the server is the authority on validity.
func IsEmail(s string) bool {
	return strings.Contains(s, "@")
}

// IsPhone reports whether s looks like a phone number: once every '+' is
// removed the remainder is all digits, and s itself is at least seven
// characters long.
func IsPhone(s string) bool {
	if len(s) < minPhoneLength {
		return false
	}
	digits := strings.ReplaceAll(s, "+", "")
	if digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// CanSubmitIdentifier reports whether s is classifiable as an email or a phone.
func CanSubmitIdentifier(s string) bool {
	return IsEmail(s) || IsPhone(s)
}

// MaskIdentifier hides most of an identifier for logs and audit metadata.
func MaskIdentifier(s string) string {
	if s == "" {
		return ""
	}
	if at := strings.IndexByte(s, '@'); at >= 0 {
		local, domain := s[:at], s[at:]
		n := utf8.RuneCountInString(local)
		if n <= 1 {
			return "*" + domain
		}
		_, size := utf8.DecodeRuneInString(local)
		return local[:size] + strings.Repeat("*", n-1) + domain
	}
	r := []rune(s)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
