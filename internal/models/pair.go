package models

import "strings"

// PairIDSeparator joins the two member ids of a pair id
const PairIDSeparator = "_"

// UserIDLength is the length of ids issued by the identity provider
const UserIDLength = 28

// PairID returns the deterministic id addressing the resources shared by a
// and b. The result does not depend on argument order.
func PairID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + PairIDSeparator + b
}

// ValidUserID reports whether s looks like an id issued by the identity
// provider: exactly UserIDLength ASCII letters or digits. It is a client-side
// convenience check only.
func ValidUserID(s string) bool {
	if len(s) != UserIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// NormalizeUserID trims surrounding whitespace from a pasted pairing code
func NormalizeUserID(s string) string {
	return strings.TrimSpace(s)
}
