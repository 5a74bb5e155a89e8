package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrDuplicateEmail         = errors.New("email already registered")
	ErrWeakCredential         = errors.New("credential does not meet strength requirements")
	ErrProviderUnavailable    = errors.New("identity or storage provider unavailable")
	ErrInvalidToken           = errors.New("invalid verification token")
	ErrTokenExpired           = errors.New("token expired")
	ErrNotAuthenticated       = errors.New("not authenticated")
	ErrUnknownRole            = errors.New("unknown role")
	ErrIncompleteMetadata     = errors.New("incomplete signup metadata")
	ErrProvisioningConflict   = errors.New("account already holds a different active role")
	ErrIllegalTransition      = errors.New("illegal lifecycle transition")
	ErrForbidden              = errors.New("forbidden")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrPartialCommit          = errors.New("profile updated but audit entry was not persisted")
	ErrInconsistentRecord     = errors.New("record inconsistent")
)

// Kind names an error in the onboarding taxonomy. It is what callers see in
// bulk results and API responses.
type Kind string

const (
	KindNotFound               Kind = "NotFound"
	KindInvalidInput           Kind = "InvalidInput"
	KindInvalidCredentials     Kind = "InvalidCredentials"
	KindDuplicateEmail         Kind = "DuplicateEmail"
	KindWeakCredential         Kind = "WeakCredential"
	KindProviderUnavailable    Kind = "ProviderUnavailable"
	KindInvalidToken           Kind = "InvalidToken"
	KindTokenExpired           Kind = "TokenExpired"
	KindNotAuthenticated       Kind = "NotAuthenticated"
	KindUnknownRole            Kind = "UnknownRole"
	KindIncompleteMetadata     Kind = "IncompleteMetadata"
	KindProvisioningConflict   Kind = "ProvisioningConflict"
	KindIllegalTransition      Kind = "IllegalTransition"
	KindForbidden              Kind = "Forbidden"
	KindConcurrentModification Kind = "ConcurrentModification"
	KindPartialCommit          Kind = "PartialCommit"
	KindInconsistentRecord     Kind = "InconsistentRecord"
	KindAlreadyExists          Kind = "AlreadyExists"
	KindInternal               Kind = "Internal"
)

// PartialCommit is checked first: it wraps the underlying audit failure, which
// may itself match another kind.
var kindTable = []struct {
	err    error
	kind   Kind
	status int
}{
	{ErrPartialCommit, KindPartialCommit, http.StatusAccepted},
	{ErrIllegalTransition, KindIllegalTransition, http.StatusConflict},
	{ErrConcurrentModification, KindConcurrentModification, http.StatusConflict},
	{ErrForbidden, KindForbidden, http.StatusForbidden},
	{ErrIncompleteMetadata, KindIncompleteMetadata, http.StatusUnprocessableEntity},
	{ErrProvisioningConflict, KindProvisioningConflict, http.StatusConflict},
	{ErrInconsistentRecord, KindInconsistentRecord, http.StatusConflict},
	{ErrDuplicateEmail, KindDuplicateEmail, http.StatusConflict},
	{ErrWeakCredential, KindWeakCredential, http.StatusBadRequest},
	{ErrInvalidToken, KindInvalidToken, http.StatusBadRequest},
	{ErrTokenExpired, KindTokenExpired, http.StatusGone},
	{ErrNotAuthenticated, KindNotAuthenticated, http.StatusUnauthorized},
	{ErrInvalidCredentials, KindInvalidCredentials, http.StatusUnauthorized},
	{ErrUnknownRole, KindUnknownRole, http.StatusBadRequest},
	{ErrProviderUnavailable, KindProviderUnavailable, http.StatusServiceUnavailable},
	{ErrNotFound, KindNotFound, http.StatusNotFound},
	{ErrAlreadyExists, KindAlreadyExists, http.StatusConflict},
	{ErrInvalidInput, KindInvalidInput, http.StatusBadRequest},
}

// KindOf classifies err. A nil error has no kind; anything outside the
// taxonomy is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kindTable {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Retryable reports whether a caller may retry after re-reading state.
// PartialCommit is never retried: a retry could duplicate audit entries.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConcurrentModification, KindProviderUnavailable:
		return true
	default:
		return false
	}
}

// ReasonFor returns the operator-facing explanation for a kind.
func ReasonFor(kind Kind) string {
	switch kind {
	case KindConcurrentModification:
		return "already processed by someone else"
	case KindForbidden:
		return "you are not authorized to perform this action"
	case KindIllegalTransition:
		return "profile is not in a state that allows this action"
	case KindInconsistentRecord:
		return "record inconsistent, operator follow-up required"
	case KindPartialCommit:
		return "status changed but audit entry is missing, operator reconciliation required"
	case KindIncompleteMetadata:
		return "signup metadata is missing required fields"
	case KindProvisioningConflict:
		return "account already holds a different role"
	case KindProviderUnavailable:
		return "a backing service is unavailable, retry later"
	case KindNotFound:
		return "record not found"
	case KindDuplicateEmail:
		return "email already registered"
	case KindWeakCredential:
		return "password must be at least 8 characters and contain a letter and a digit"
	case KindInvalidToken:
		return "verification token is invalid"
	case KindTokenExpired:
		return "token has expired"
	case KindNotAuthenticated:
		return "authentication required"
	case KindInvalidCredentials:
		return "invalid email or password"
	case KindUnknownRole:
		return "role must be one of student, teacher, admin"
	case KindInvalidInput:
		return "invalid input"
	case KindAlreadyExists:
		return "resource already exists"
	default:
		return "internal error"
	}
}

// Unavailable marks an infrastructure error as ProviderUnavailable unless it
// already belongs to the taxonomy.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindInternal {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, string(KindNotFound), message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, string(KindInvalidInput), message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, string(KindNotAuthenticated), message, ErrNotAuthenticated)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, string(KindForbidden), message, ErrForbidden)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, string(KindInternal), "internal server error", err)
}

// FromError converts any error into an AppError using the taxonomy.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, k := range kindTable {
		if errors.Is(err, k.err) {
			return NewAppError(k.status, string(k.kind), ReasonFor(k.kind), err)
		}
	}
	return InternalError(err)
}
