package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden           ErrorCode = "FORBIDDEN"
	ErrCodeValidation          ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	ErrCodeDuplicateResolution ErrorCode = "DUPLICATE_RESOLUTION"
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeRateLimited         ErrorCode = "RATE_LIMITED"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Internal оборачивает неожиданную ошибку хранилища.
func Internal(err error, message string) *AppError {
	return Wrap(err, ErrCodeInternal, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeInvalidTransition, ErrCodeDuplicateResolution:
		return http.StatusConflict
	case ErrCodeInsufficientBalance:
		return http.StatusPaymentRequired
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или INTERNAL_ERROR для посторонних ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool {
	return is(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return is(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return is(err, ErrCodeValidation)
}

func IsInvalidTransition(err error) bool {
	return is(err, ErrCodeInvalidTransition)
}

func IsDuplicateResolution(err error) bool {
	return is(err, ErrCodeDuplicateResolution)
}

func IsInsufficientBalance(err error) bool {
	return is(err, ErrCodeInsufficientBalance)
}

var (
	ErrOrderNotFound       = New(ErrCodeNotFound, "заказ не найден")
	ErrWorkProofNotFound   = New(ErrCodeNotFound, "отчёт о работе не найден")
	ErrDisputeNotFound     = New(ErrCodeNotFound, "спор не найден")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
	ErrInsufficientBalance = New(ErrCodeInsufficientBalance, "недостаточно средств на депозите")
	ErrAlreadyResolved     = New(ErrCodeDuplicateResolution, "решение уже принято")
	ErrRateLimited         = New(ErrCodeRateLimited, "слишком много запросов, попробуйте позже")
)
