package models

import (
	"errors"
	"net/http"
)

type ErrorKind string // Класс ошибки перехода

const (
	UnauthorizedError       ErrorKind = "Unauthorized"
	NotFoundError           ErrorKind = "NotFound"
	InvalidTransitionError  ErrorKind = "InvalidTransition"
	InvariantViolationError ErrorKind = "InvariantViolation"
	WindowViolationError    ErrorKind = "WindowViolation"
	ValidationError         ErrorKind = "Validation"
	ExternalFailureError    ErrorKind = "ExternalDependencyFailure"
	InternalError           ErrorKind = "Internal"
)

// ErrorResponse описывает ошибку с кодом и сообщением.
type ErrorResponse struct {
	StatusCode int       `json:"-"`
	Kind       ErrorKind `json:"kind,omitempty"`
	Code       string    `json:"code,omitempty"`
	Message    string    `json:"reason"`
}

// NewErrorResponse создает новую ошибку с кодом и сообщением.
func NewErrorResponse(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Kind:       kindForStatus(statusCode),
		Message:    message}
}

// NewDomainError создает ошибку перехода с классом и стабильным кодом.
func NewDomainError(kind ErrorKind, code, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusForKind(kind),
		Kind:       kind,
		Code:       code,
		Message:    message,
	}
}

// Реализация метода Error() для удовлетворения интерфейса error.
func (e *ErrorResponse) Error() string {
	return e.Message
}

// Is сравнивает ошибки по коду, если он задан, иначе по классу.
func (e *ErrorResponse) Is(target error) bool {
	t, ok := target.(*ErrorResponse)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return t.Kind != "" && e.Kind == t.Kind
}

// WithMessage возвращает копию ошибки с другим сообщением.
func (e *ErrorResponse) WithMessage(message string) *ErrorResponse {
	c := *e
	c.Message = message
	return &c
}

// KindOf возвращает класс ошибки или InternalError для прочих ошибок.
func KindOf(err error) ErrorKind {
	var e *ErrorResponse
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}

var (
	ErrUnauthorized         = NewDomainError(UnauthorizedError, "UNAUTHORIZED", "you are not allowed to perform this action")
	ErrTenderNotFound       = NewDomainError(NotFoundError, "TENDER_NOT_FOUND", "tender not found")
	ErrOfferNotFound        = NewDomainError(NotFoundError, "OFFER_NOT_FOUND", "offer not found")
	ErrOrganizationNotFound = NewDomainError(NotFoundError, "ORGANIZATION_NOT_FOUND", "organization not found")
	ErrInvalidTransition    = NewDomainError(InvalidTransitionError, "INVALID_TRANSITION", "transition is not allowed in the current status")
	ErrDeadlineNotReached   = NewDomainError(WindowViolationError, "DEADLINE_NOT_REACHED", "tender deadline has not been reached")
	ErrWindowClosed         = NewDomainError(WindowViolationError, "SUBMISSION_WINDOW_CLOSED", "tender deadline has passed")
	ErrDuplicateActiveOffer = NewDomainError(InvariantViolationError, "DUPLICATE_ACTIVE_OFFER", "organization already has an active offer for this tender")
	ErrSelfBidProhibited    = NewDomainError(InvariantViolationError, "SELF_BID_PROHIBITED", "organization cannot bid on its own tender")
	ErrInternal             = NewDomainError(InternalError, "INTERNAL", "internal server error")
)

func statusForKind(kind ErrorKind) int {
	switch kind {
	case UnauthorizedError:
		return http.StatusForbidden
	case NotFoundError:
		return http.StatusNotFound
	case InvalidTransitionError, InvariantViolationError:
		return http.StatusConflict
	case WindowViolationError:
		return http.StatusUnprocessableEntity
	case ValidationError:
		return http.StatusBadRequest
	case ExternalFailureError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func kindForStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return UnauthorizedError
	case http.StatusNotFound:
		return NotFoundError
	case http.StatusBadRequest:
		return ValidationError
	}
	return InternalError
}
