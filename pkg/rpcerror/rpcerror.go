package rpcerror

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// Error is the structured error shape exchanged over the RPC boundary.
// Status is kept loosely typed: replies coming from other services may carry
// it as a number or as a string, both must coerce to an HTTP-like code.
type Error struct {
	Status  any    `json:"status"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// New creates a structured error with a numeric status code.
func New(status int, message string) *Error {
	return &Error{
		Status:  status,
		Message: message,
	}
}

// StatusCode extracts the client-facing status code from err.
// A non-structured error, or a structured one whose status does not coerce
// to a number, yields 400.
func StatusCode(err error) int {
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		return http.StatusBadRequest
	}

	switch s := rpcErr.Status.(type) {
	case int:
		return s
	case int32:
		return int(s)
	case int64:
		return int(s)
	case float64:
		return int(s)
	case json.Number:
		code, err := s.Int64()
		if err != nil {
			return http.StatusBadRequest
		}

		return int(code)
	case string:
		code, err := strconv.Atoi(s)
		if err != nil {
			return http.StatusBadRequest
		}

		return code
	default:
		return http.StatusBadRequest
	}
}

// Body returns the JSON-serializable response body for err.
// A structured error is returned verbatim; anything else is wrapped into
// {status: 400, message: <error text>}.
func Body(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	return &Error{
		Status:  http.StatusBadRequest,
		Message: err.Error(),
	}
}

// WriteHTTP translates err into an HTTP response: the coerced status code
// and the JSON body produced by Body.
func WriteHTTP(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(err))
	_ = json.NewEncoder(w).Encode(Body(err))
}
