// Package repositories holds the errors shared by every entity repository.
package repositories

import "errors"

// ValidationError is a referential-integrity failure detected before any write.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func newValidation(msg string) *ValidationError { return &ValidationError{msg: msg} }

var (
	ErrSubjectNotFound        = newValidation("subject not found")
	ErrUserNotFound           = newValidation("user not found")
	ErrNotLecturer            = newValidation("user is not a lecturer")
	ErrNotStudent             = newValidation("user is not a student")
	ErrStudentAlreadyAssigned = newValidation("student already assigned")
	ErrStudentNotFound        = newValidation("student not found")
	ErrGroupNotFound          = newValidation("group not found")
	ErrStudentNotInGroup      = newValidation("student does not belong to group")
	ErrGradeNotFound          = newValidation("grade not found")
)

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Reason returns the bare message of the wrapped ValidationError, or "".
func Reason(err error) string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.msg
	}
	return ""
}
