package provider

import (
	"errors"
	"fmt"

	"github.com/ssekandi/safiri-payments/internal/domain"
)

// Error is an unrecoverable transport or authentication failure talking to
// a provider. Business-level declines are not Errors; they are carried in
// Result.Success / Result.Message.
type Error struct {
	Provider   domain.Provider
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsProviderError unwraps an *Error from an error chain.
func IsProviderError(err error) (*Error, bool) {
	var pErr *Error
	ok := errors.As(err, &pErr)
	return pErr, ok
}
