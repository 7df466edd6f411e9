// Package classify decides which kind of entity a line of user input names.
package classify

import "strings"

// Kind is the entity kind of a classified input.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindEmail
	KindPhone
	KindURL
	KindIP
)

// minPhoneDigits is the shortest all-digit string treated as a phone number.
const minPhoneDigits = 10

func (k Kind) String() string {
	switch k {
	case KindEmail:
		return "email"
	case KindPhone:
		return "phone"
	case KindURL:
		return "url"
	case KindIP:
		return "ip"
	default:
		return "unrecognized"
	}
}

// Classify returns the kind of text. Rules are checked in order and the first
// match wins, so "http://10.0.0.1" is a URL and "a@1.2.3.4" is an email.
//
// IP detection is syntactic only: "999.999.999.999" is reported as KindIP.
// Octet ranges are not checked.
func Classify(text string) Kind {
	switch {
	case strings.Contains(text, "@"):
		return KindEmail
	case len(text) >= minPhoneDigits && allDigits(text):
		return KindPhone
	case strings.HasPrefix(text, "http"):
		return KindURL
	case looksLikeIPv4(text):
		return KindIP
	default:
		return KindUnrecognized
	}
}

func looksLikeIPv4(text string) bool {
	if strings.Count(text, ".") != 3 {
		return false
	}
	for _, part := range strings.Split(text, ".") {
		if !allDigits(part) {
			return false
		}
	}
	return true
}

// allDigits reports whether s is non-empty and made only of ASCII digits.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
