package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(format string, args ...any) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf(format, args...), nil)
}

func conflict(format string, args ...any) *DomainError {
	return domainError(http.StatusConflict, "CONFLICT", fmt.Sprintf(format, args...), nil)
}

func unauthorized(format string, args ...any) *DomainError {
	return domainError(http.StatusForbidden, "UNAUTHORIZED", fmt.Sprintf(format, args...), nil)
}

func invalid(format string, args ...any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf(format, args...), nil)
}
