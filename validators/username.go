package validators

import (
	"fmt"
	"relayum/file-api/pkg/apperr"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
)

// UsernameValidator accepts lowercase ASCII letters, digits, dots, dashes
// and underscores. The first character must be a letter.
func UsernameValidator(u string) error {
	if len(u) < minUsernameLen || len(u) > maxUsernameLen {
		return fmt.Errorf("%w: username must be between %d and %d characters", apperr.ErrValidation, minUsernameLen, maxUsernameLen)
	}

	if u[0] < 'a' || u[0] > 'z' {
		return fmt.Errorf("%w: username must start with a lowercase letter", apperr.ErrValidation)
	}

	for _, r := range u {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_':
		default:
			return fmt.Errorf("%w: username contains invalid characters", apperr.ErrValidation)
		}
	}

	return nil
}
