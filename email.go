package havenwatch

import "regexp"

// Deliberately permissive: anything shaped like local@domain.tld passes.
// The goal is to short-circuit obviously malformed input before it reaches a
// store or the hosted provider, not to enforce RFC 5322.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether the address passes the permissive syntax check.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
