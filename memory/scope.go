package memory

import (
	"fmt"
	"strings"
)

// SanitizeScope validates a scope id before it is used as a directory name.
// Surrounding whitespace is trimmed; what remains must be non-empty and made
// of ASCII letters, digits, '_' and '-'.
func SanitizeScope(id string) (string, error) {
	scope := strings.TrimSpace(id)
	if scope == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidScope)
	}
	for _, r := range scope {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidScope, id)
		}
	}
	return scope, nil
}
