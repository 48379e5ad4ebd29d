// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"fmt"
	"net/mail"
	"relayum/file-api/pkg/apperr"
)

var (
	ErrEmailEmpty   = fmt.Errorf("%w: no email address provided", apperr.ErrValidation)
	ErrEmailInvalid = fmt.Errorf("%w: invalid email address provided", apperr.ErrValidation)
)

func EmailValidator(e string) error {
	if e == "" {
		return ErrEmailEmpty
	}

	if _, err := mail.ParseAddress(e); err != nil {
		return ErrEmailInvalid
	}

	return nil
}
