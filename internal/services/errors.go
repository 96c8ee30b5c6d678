package services

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalid   ErrorCode = "invalid"
	ErrorNotFound  ErrorCode = "not_found"
	ErrorConflict  ErrorCode = "conflict"
	ErrorForbidden ErrorCode = "forbidden"
	// ErrorInternal marks invariant violations inside the engine itself;
	// they indicate a programming error, never bad caller input.
	ErrorInternal ErrorCode = "internal"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewInternalError(msg string) error  { return &ServiceError{Code: ErrorInternal, Message: msg} }

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// StructuralErrorKind classifies the structural problems a draft or import
// sheet can exhibit. Structural errors are collected, never fail-fast, so
// the caller can display every problem at once.
type StructuralErrorKind string

const (
	StructuralDanglingSource StructuralErrorKind = "dangling_source"
	StructuralDanglingTarget StructuralErrorKind = "dangling_target"
	StructuralForwardRef     StructuralErrorKind = "forward_reference"
	StructuralSelfRef        StructuralErrorKind = "self_reference"
	StructuralUnknownOption  StructuralErrorKind = "unknown_option"
	StructuralBadSource      StructuralErrorKind = "ungateable_source"
	StructuralBadQuestion    StructuralErrorKind = "bad_question"
)

// StructuralError pinpoints one structural problem. Row is the zero-based
// row (question position) the problem was detected on.
type StructuralError struct {
	Kind    StructuralErrorKind
	Row     int
	Message string
}

func (e StructuralError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Kind, e.Message)
}

// StructuralWarning is a non-fatal finding (e.g. duplicate question text
// within a section). Warnings never block accepting a draft.
type StructuralWarning struct {
	Row     int
	Message string
}
