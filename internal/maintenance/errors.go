package maintenance

import (
	"fmt"

	"github.com/pkg/errors"

	"rentdesk/db"
)

var (
	// ErrNotFound: заявка или работа отсутствует, удалена или принадлежит другому владельцу
	ErrNotFound         = db.ErrNotFound
	ErrValidation       = errors.New("validation failed")
	ErrStateConflict    = errors.New("state conflict")
	ErrPermissionDenied = errors.New("permission denied")
	ErrPartialFailure   = errors.New("partial failure")
)

// ValidationError описывает поле, не прошедшее проверку
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransitionError: переход между статусами, которого нет в таблице
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrStateConflict
}

// PartialFailureError: первый шаг записан, второй не удался, откат тоже не удался
type PartialFailureError struct {
	Operation string
	Cause     error
	Rollback  error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s left inconsistent: %v (rollback: %v)", e.Operation, e.Cause, e.Rollback)
}

func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}

func (e *PartialFailureError) Unwrap() error {
	return e.Cause
}
