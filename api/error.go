package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Error is a non-2xx response from the security API.
type Error struct {
	Status  int
	Message string
	Code    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("security api: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("security api: %d %s", e.Status, http.StatusText(e.Status))
}

// UserMessage returns the server-provided message.
func (e *Error) UserMessage() string {
	return e.Message
}

// StatusCode returns the HTTP status.
func (e *Error) StatusCode() int {
	return e.Status
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func decodeError(status int, body []byte) *Error {
	e := &Error{Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		e.Message = strings.TrimSpace(eb.Message)
		if e.Message == "" {
			e.Message = strings.TrimSpace(eb.Error)
		}
		e.Code = eb.Code
	}
	return e
}
