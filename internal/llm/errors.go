package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"regexp"
	"strings"
	"syscall"
)

// TransientError indicates a connectivity failure that can be retried.
type TransientError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient error (status %d): %s", e.StatusCode, Truncate(e.Message, 200))
	}
	return fmt.Sprintf("transient error: %s", Truncate(e.Message, 200))
}

func (e *TransientError) Unwrap() error { return e.Err }

// MalformedError indicates the service answered but the payload is unusable.
// Retrying does not fix the shape of a response, so it is never retried.
type MalformedError struct {
	Message string
	Raw     string
}

func (e *MalformedError) Error() string {
	if e.Raw == "" {
		return "malformed response: " + e.Message
	}
	return fmt.Sprintf("malformed response: %s (raw: %s)", e.Message, Truncate(e.Raw, 200))
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsMalformed reports whether err describes an unusable response.
func IsMalformed(err error) bool {
	var m *MalformedError
	return errors.As(err, &m)
}

// Classify maps transport failures onto TransientError. Already classified
// errors and caller cancellation pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) || IsMalformed(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return &TransientError{Message: "timeout: " + err.Error(), Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Message: "timeout: " + err.Error(), Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &TransientError{Message: "connection: " + err.Error(), Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &TransientError{Message: "connection: " + err.Error(), Err: err}
	}
	return err
}

// StatusError converts a non-200 HTTP status into an error, marking rate
// limits and server errors as transient.
func StatusError(provider string, code int, body string) error {
	if code == http.StatusTooManyRequests || code >= 500 {
		return &TransientError{StatusCode: code, Message: body}
	}
	return fmt.Errorf("%s api status %d: %s", provider, code, Truncate(body, 200))
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeBlock removes a surrounding markdown fence, if present.
func StripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// Truncate shortens s to at most n bytes for log and error output.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
