package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
)

type ErrorCode string

const (
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeUnprocessable   ErrorCode = "UNPROCESSABLE"
	CodeInternalFault   ErrorCode = "INTERNAL_FAULT"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeRateLimit       ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeTooLarge        ErrorCode = "PAYLOAD_TOO_LARGE"
)

// AppError is a request failure with the status it is reported under. Its
// message is what the client sees as "detail".
type AppError struct {
	Code       ErrorCode
	Message    string
	StatusCode int
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
		StatusCode: getStatusCode(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: getStatusCode(code),
		Cause:      err,
	}
}

func InvalidArgument(message string) *AppError {
	return New(CodeInvalidArgument, message)
}

func InvalidArgumentWrap(err error, message string) *AppError {
	return Wrap(err, CodeInvalidArgument, message)
}

func Unprocessable(message string) *AppError {
	return New(CodeUnprocessable, message)
}

func UnprocessableWrap(err error, message string) *AppError {
	return Wrap(err, CodeUnprocessable, message)
}

func InternalFault(message string) *AppError {
	return New(CodeInternalFault, message)
}

// InternalFaultWrap reports err as a server fault whose detail is err's own text.
func InternalFaultWrap(err error) *AppError {
	return Wrap(err, CodeInternalFault, err.Error())
}

func NotFound(message string) *AppError {
	return New(CodeNotFound, message)
}

func RateLimit(message string) *AppError {
	return New(CodeRateLimit, message)
}

func TooLargeWrap(err error, message string) *AppError {
	return Wrap(err, CodeTooLarge, message)
}

func getStatusCode(code ErrorCode) int {
	switch code {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnprocessable:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

// WriteError renders err as {"detail": ...}. Errors that are not an AppError
// anywhere in their chain become an internal fault carrying err's text.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error, requestID string) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		appErr = InternalFaultWrap(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)

	if encodeErr := json.NewEncoder(w).Encode(ErrorResponse{Detail: appErr.Message}); encodeErr != nil {
		logger.Error("failed to encode error response",
			"encode_error", encodeErr,
			"original_error", err,
			"request_id", requestID,
		)
		return
	}

	logLevel := slog.LevelError
	if appErr.StatusCode < 500 {
		logLevel = slog.LevelWarn
	}

	logger.Log(context.Background(), logLevel, "request failed",
		"error_code", appErr.Code,
		"error_message", appErr.Message,
		"status_code", appErr.StatusCode,
		"request_id", requestID,
		"cause", appErr.Cause,
	)
}

// WriteJSON renders data as a flat JSON body with status 200.
func WriteJSON(w http.ResponseWriter, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(data)
}

func WriteJSONWithHeaders(w http.ResponseWriter, data any, headers map[string]string) error {
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	return WriteJSON(w, data)
}
