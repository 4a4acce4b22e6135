// Package mask redacts identifiers before they reach logs or API responses.
package mask

import "strings"

// Identifier masks an opaque identifier (policy number, beneficiary id),
// keeping only the last 4 characters.
func Identifier(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// TransactionID keeps the first 8 and last 4 characters so operators can
// still correlate records without exposing the full id.
func TransactionID(s string) string {
	if len(s) <= 12 {
		return Identifier(s)
	}
	return s[:8] + "..." + s[len(s)-4:]
}

// Document masks a Brazilian CPF/CNPJ, keeping the last 4 digits.
func Document(s string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) <= 4 {
		return "***********"
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

// Email shows the first character of the local part and the full domain.
func Email(s string) string {
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return "****"
	}
	return s[:1] + strings.Repeat("*", at-1) + s[at:]
}
