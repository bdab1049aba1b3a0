// Package remote describes failures of calls to external services (document
// parsing, OCR, storage, lender matching) in a single display string.
package remote

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Error is a failed call to an external service. Any of StatusCode, Message
// and Body may be empty depending on what the service returned.
type Error struct {
	Service    string
	Op         string
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (e *Error) Error() string {
	return Describe(e)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap builds an Error for service/op around err. A nil err returns nil.
func Wrap(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Service: service, Op: op, Err: err}
}

// HTTP builds an Error from a non-2xx HTTP response.
func HTTP(service, op string, statusCode int, body []byte) *Error {
	return &Error{
		Service:    service,
		Op:         op,
		StatusCode: statusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// Describe flattens err into one diagnostic line: the service and
// operation, the status code, the message and the response body, each only
// when present.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var re *Error
	if !errors.As(err, &re) {
		return err.Error()
	}

	var parts []string
	if re.Service != "" || re.Op != "" {
		parts = append(parts, strings.Trim(re.Service+" "+re.Op, " "))
	}
	if re.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status %d", re.StatusCode))
	}
	msg := re.Message
	if msg == "" && re.Err != nil {
		msg = re.Err.Error()
	}
	if msg != "" {
		parts = append(parts, msg)
	}
	if re.Body != "" && !strings.Contains(msg, re.Body) {
		parts = append(parts, "body: "+re.Body)
	}
	if len(parts) == 0 {
		return "remote call failed"
	}
	return strings.Join(parts, ": ")
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}

// IsTransient reports whether err looks like a network or server-side
// hiccup that a manual resubmission may get past. Nothing retries on it.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	switch StatusCode(err) {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"tls handshake timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
