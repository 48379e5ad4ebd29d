package validators

import (
	"fmt"
	"relayum/file-api/pkg/apperr"
)

var (
	ErrPasswordTooShort = fmt.Errorf("%w: password must be at least 8 characters long", apperr.ErrValidation)
	ErrPasswordTooLong  = fmt.Errorf("%w: password is too long", apperr.ErrValidation)
	ErrPasswordEmpty    = fmt.Errorf("%w: no password provided", apperr.ErrValidation)
)

func PasswordValidator(p string) error {
	if p == "" {
		return ErrPasswordEmpty
	}

	if len(p) < 8 {
		return ErrPasswordTooShort
	}

	if len(p) > 255 {
		return ErrPasswordTooLong
	}

	return nil
}
