package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// maxErrorBody limits how much of an error response is kept in StatusError
const maxErrorBody = 512

// StatusError reports a response whose status code was not expected
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Body)
}

// ReadResponseBody reads and closes HTTP response body
func ReadResponseBody(resp *http.Response) ([]byte, error) {
	defer closeBody(resp)
	return io.ReadAll(resp.Body)
}

// CheckStatusCode validates HTTP response status code. On mismatch the
// beginning of the body is read into the returned *StatusError.
func CheckStatusCode(resp *http.Response, expectedCodes ...int) error {
	for _, code := range expectedCodes {
		if resp.StatusCode == code {
			return nil
		}
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode}
	if resp.Body != nil {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr.Body = strings.TrimSpace(string(snippet))
	}
	return statusErr
}

// EnsureStatusOK checks if the response status is 200 OK
func EnsureStatusOK(resp *http.Response) error {
	return CheckStatusCode(resp, http.StatusOK)
}

func closeBody(resp *http.Response) {
	if closeErr := resp.Body.Close(); closeErr != nil {
		slog.Error("Failed to close response body", "error", closeErr)
	}
}
