package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// GRPCStatus lets status.FromError and status.Code classify an AppError.
func (e *AppError) GRPCStatus() *status.Status {
	code, ok := sentinelCode(e)
	if !ok {
		code = codes.Unknown
	}
	return status.New(code, e.Error())
}

// Error codes carried by AppError.Code.
const (
	CodeDocumentUnreadable = "DOCUMENT_UNREADABLE"
	CodeUnsupportedFormat  = "UNSUPPORTED_FORMAT"
	CodeExportFailure      = "EXPORT_FAILURE"
	CodeConfig             = "CONFIG_ERROR"
	CodeDatabase           = "DATABASE_ERROR"
	CodeProfile            = "PROFILE_ERROR"
)

// Common application errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
	ErrDatabase           = errors.New("database error")
	ErrValidation         = errors.New("validation failed")
	ErrDocumentUnreadable = errors.New("document unreadable")
	ErrUnsupportedFormat  = errors.New("unsupported document format")
	ErrExportFailure      = errors.New("export failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// UnreadableError wraps a reader failure for path.
func UnreadableError(path string, cause error) error {
	return NewAppError(CodeDocumentUnreadable, path, errors.Join(ErrDocumentUnreadable, cause))
}

// ExportError wraps a writer failure for target.
func ExportError(target string, cause error) error {
	return NewAppError(CodeExportFailure, target, errors.Join(ErrExportFailure, cause))
}

// DatabaseError wraps a ledger failure during op.
func DatabaseError(op string, cause error) error {
	return NewAppError(CodeDatabase, op, errors.Join(ErrDatabase, cause))
}

// GRPCCode classifies err by the sentinel it wraps.
func GRPCCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if code, ok := sentinelCode(err); ok {
		return code
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Unknown
}

func sentinelCode(err error) (codes.Code, bool) {
	switch {
	case errors.Is(err, ErrDocumentUnreadable):
		return codes.DataLoss, true
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return codes.InvalidArgument, true
	case errors.Is(err, ErrExportFailure):
		return codes.Unavailable, true
	case errors.Is(err, ErrNotFound):
		return codes.NotFound, true
	case errors.Is(err, ErrDatabase):
		return codes.Internal, true
	}
	return codes.Unknown, false
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
