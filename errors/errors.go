package errors

import (
	errs "errors"
	"fmt"
	"runtime"
	"strings"
)

type ErrorLevel string

func (e ErrorLevel) String() string {
	return string(e)
}

const (
	ERR_INFRASTRUCTURE ErrorLevel = "infrastructure"
	ERR_APPLICATION    ErrorLevel = "application"
	ERR_DOMAIN         ErrorLevel = "domain"
	ERR_VALIDATION     ErrorLevel = "validation"
	ERR_NOTFOUND       ErrorLevel = "notfound"
	ERR_PERMISSION     ErrorLevel = "permission"
	ERR_UNKNOWN        ErrorLevel = "unknown"
)

// ExtendError carries the error level, an optional machine-readable code and
// arbitrary metadata next to the wrapped error. Callers branch on the level or
// code, never on the message text.
type ExtendError struct {
	Level      ErrorLevel     `json:"level"`
	Err        error          `json:"error"`
	Code       string         `json:"code,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	StackTrace string         `json:"-"`
}

func (e *ExtendError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	msg := e.Err.Error()
	if e.Code != "" {
		msg = fmt.Sprintf("[%s] %s", e.Code, msg)
	}
	return msg
}

func (e *ExtendError) Unwrap() error {
	return e.Err
}

func (e *ExtendError) WithCode(code string) *ExtendError {
	e.Code = code
	return e
}

func (e *ExtendError) WithMetadata(key string, value any) *ExtendError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// WithField records the offending field name on a validation error.
func (e *ExtendError) WithField(field string) *ExtendError {
	return e.WithMetadata("field", field)
}

// Field returns the field name attached to a validation error, if any.
func (e *ExtendError) Field() string {
	if e == nil || e.Metadata == nil {
		return ""
	}
	if f, ok := e.Metadata["field"].(string); ok {
		return f
	}
	return ""
}

func New(message string) error {
	return errs.New(message)
}

func Is(target, err error) bool {
	return errs.Is(err, target)
}

func IsExtendError(err error) bool {
	var extendErr *ExtendError
	return errs.As(err, &extendErr)
}

func As(err error, target interface{}) bool {
	return errs.As(err, target)
}

func captureStackTrace() string {
	var sb strings.Builder
	// Skip 3 frames: captureStackTrace, wrap, and the caller of wrap
	for i := 3; i < 15; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fmt.Fprintf(&sb, "%s:%d\n", file, line)
	}
	return sb.String()
}

func wrap(err error, level ErrorLevel) *ExtendError {
	if IsExtendError(err) {
		// Preserve the level, code and metadata of an already classified
		// error instead of re-wrapping it.
		return err.(*ExtendError)
	}
	return &ExtendError{
		Level:      level,
		Err:        err,
		StackTrace: captureStackTrace(),
	}
}

func InfraError(err error) *ExtendError {
	return wrap(err, ERR_INFRASTRUCTURE)
}

func AppError(err error) *ExtendError {
	return wrap(err, ERR_APPLICATION)
}

func DomainError(err error) *ExtendError {
	return wrap(err, ERR_DOMAIN)
}

func ValidationError(err error) *ExtendError {
	return wrap(err, ERR_VALIDATION)
}

func NotFoundError(err error) *ExtendError {
	return wrap(err, ERR_NOTFOUND)
}

func PermissionError(err error) *ExtendError {
	return wrap(err, ERR_PERMISSION)
}

func UnknownError(err error) *ExtendError {
	return wrap(err, ERR_UNKNOWN)
}

func GetLevel(err error) ErrorLevel {
	var extendErr *ExtendError
	if errs.As(err, &extendErr) && extendErr != nil {
		return extendErr.Level
	}
	return ERR_UNKNOWN
}

// GetCode returns the machine-readable code of a classified error, or "".
func GetCode(err error) string {
	var extendErr *ExtendError
	if errs.As(err, &extendErr) && extendErr != nil {
		return extendErr.Code
	}
	return ""
}

func IsInfraError(err error) bool {
	return GetLevel(err) == ERR_INFRASTRUCTURE
}
func IsAppError(err error) bool {
	return GetLevel(err) == ERR_APPLICATION
}
func IsDomainError(err error) bool {
	return GetLevel(err) == ERR_DOMAIN
}
func IsValidationError(err error) bool {
	return GetLevel(err) == ERR_VALIDATION
}
func IsNotFoundError(err error) bool {
	return GetLevel(err) == ERR_NOTFOUND
}
func IsPermissionError(err error) bool {
	return GetLevel(err) == ERR_PERMISSION
}
func IsUnknownError(err error) bool {
	return GetLevel(err) == ERR_UNKNOWN
}
