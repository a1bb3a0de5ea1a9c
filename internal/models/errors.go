package models

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError reports a missing actor, review, record or alert.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewNotFound builds a NotFoundError for the given resource and identifier.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ValidationError reports malformed or rejected input, including duplicate
// votes and invalid decision statuses.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidation builds a ValidationError with a formatted message.
func NewValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NewInvalidStatus builds the rejection for an unaccepted decision status,
// listing the valid set.
func NewInvalidStatus(got DecisionStatus) *ValidationError {
	valid := make([]string, len(ValidDecisionStatuses))
	for i, s := range ValidDecisionStatuses {
		valid[i] = string(s)
	}
	return NewValidation("invalid decision status %q, valid statuses: %s", got, strings.Join(valid, ", "))
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExternalServiceError reports a failed or timed-out call to a best-effort
// external collaborator. It is always recoverable: callers fall back to local
// analysis and never surface it as a hard failure.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// IsExternalServiceError reports whether err is (or wraps) an
// ExternalServiceError.
func IsExternalServiceError(err error) bool {
	var ee *ExternalServiceError
	return errors.As(err, &ee)
}
