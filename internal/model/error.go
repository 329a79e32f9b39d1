package model

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	ErrCode string `json:"code"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return e.Message
}

func (e Error) Code() string {
	return e.ErrCode
}

// Is matches errors by code so that formatted errors still match their template.
func (e Error) Is(target error) bool {
	var t Error
	if !errors.As(target, &t) {
		return false
	}
	return t.ErrCode == e.ErrCode
}

// Fmt creates a new error from the base error template with provided arguments
func (e Error) Fmt(args ...any) Error {
	return Error{
		ErrCode: e.ErrCode,
		Message: fmt.Sprintf(e.Message, args...),
	}
}

// Status maps the error code to the HTTP status it is reported with.
func (e Error) Status() int {
	switch e.ErrCode {
	case ErrValidation.ErrCode:
		return http.StatusBadRequest
	case ErrSessionNotFound.ErrCode, ErrFileNotFound.ErrCode:
		return http.StatusNotFound
	case ErrPayloadTooLarge.ErrCode:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func NewError(code, message string) Error {
	return Error{
		ErrCode: code,
		Message: message,
	}
}

var (
	ErrValidation = NewError("validation", "Validation error: %s")

	ErrSessionNotFound = NewError("upload.session_not_found", "Upload session %s not found")
	ErrPayloadTooLarge = NewError("upload.payload_too_large", "Chunk exceeds the maximum size of %d bytes")
	ErrStorage         = NewError("storage", "Storage error: %v")
	ErrFileNotFound    = NewError("file.not_found", "File %s not found")
)
