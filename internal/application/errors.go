package application

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError is the uniform result-envelope error: a stable code, a
// caller-safe message and the HTTP status the REST layer should respond
// with. Callers never branch on provider identity, only on these codes.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeWrongProvider      = "WRONG_PROVIDER"
	ErrCodeUnsupportedNumber  = "UNSUPPORTED_NUMBER"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeSubmissionFailed   = "SUBMISSION_FAILED"
	ErrCodeReconciliationRisk = "RECONCILIATION_RISK"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewWrongProviderError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeWrongProvider,
		Message:    "Phone number does not belong to the requested provider",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewUnsupportedNumberError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeUnsupportedNumber,
		Message:    "Phone number is not on a supported mobile money network",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewNotFoundError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    "Transaction not found",
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

func NewSubmissionFailedError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeSubmissionFailed,
		Message:    "Provider submission failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewReconciliationRiskError marks the alertable case where money may be in
// flight with no durable local record: the provider accepted a submission
// but persisting it failed.
func NewReconciliationRiskError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeReconciliationRisk,
		Message:    "Submission accepted by provider but could not be recorded",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewConflictError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeConflict,
		Message:    "Transaction state conflict",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
