// Package parse normalizes and validates the student identifiers that arrive
// on the API surface before they reach the registration engine.
package parse

import (
	"fmt"
	"strings"
)

// Email is a normalized student email address.
type Email string

// ParseEmail trims, lowercases, and structurally validates a raw address.
// The check is deliberately shallow: real deliverability is the notifier's
// problem, this only rejects values that cannot identify a student.
func ParseEmail(raw string) (Email, error) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if addr == "" {
		return "", fmt.Errorf("email is required")
	}
	if len(addr) > 254 {
		return "", fmt.Errorf("email exceeds 254 characters")
	}

	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" || domain == "" {
		return "", fmt.Errorf("email %q is malformed", raw)
	}
	if strings.ContainsAny(addr, " \t") {
		return "", fmt.Errorf("email %q contains whitespace", raw)
	}
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", fmt.Errorf("email domain %q is malformed", domain)
	}
	return Email(addr), nil
}

// String returns the normalized address.
func (e Email) String() string {
	return string(e)
}
