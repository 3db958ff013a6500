package model

import "strings"

// PhoneNumberLength is the length of a local Ghana mobile number (0XXXXXXXXX).
const PhoneNumberLength = 10

// MTNPrefixes are the local prefixes allocated to MTN Ghana.
var MTNPrefixes = []string{"024", "025", "053", "054", "055", "059"}

// PhoneNumber is a normalized local mobile number: digits only, at most 10 of them.
type PhoneNumber string

// NormalizePhone strips every non-digit from raw and keeps the first 10 digits.
func NormalizePhone(raw string) PhoneNumber {
	var b strings.Builder
	b.Grow(PhoneNumberLength)
	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		if b.Len() == PhoneNumberLength {
			break
		}
	}
	return PhoneNumber(b.String())
}

func (p PhoneNumber) String() string { return string(p) }

// IsComplete reports whether p has exactly 10 digits and a leading zero.
func (p PhoneNumber) IsComplete() bool {
	if len(p) != PhoneNumberLength || p[0] != '0' {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < '0' || p[i] > '9' {
			return false
		}
	}
	return true
}

// IsValidMTN reports whether p is a complete number on an MTN prefix.
func (p PhoneNumber) IsValidMTN() bool {
	if !p.IsComplete() {
		return false
	}
	for _, prefix := range MTNPrefixes {
		if strings.HasPrefix(string(p), prefix) {
			return true
		}
	}
	return false
}
