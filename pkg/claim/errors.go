package claim

import (
	"errors"
	"fmt"
)

// Kind classifies why a facade call failed
type Kind int

const (
	// KindTransport covers failures reaching the API, including non-auth
	// error statuses.
	KindTransport Kind = iota
	// KindAuth means the API rejected the credentials (401 or 403).
	KindAuth
	// KindDecode means the response body did not have the expected shape.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// maxBodyExcerpt bounds how much of a response body is kept on an Error
const maxBodyExcerpt = 512

// Error is returned by every Client operation
type Error struct {
	Kind       Kind
	Op         string // "fetch status" or "submit claim"
	StatusCode int    // 0 when no response was received
	Body       string // truncated response text, for decode and status errors
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += "\nresponse text: " + e.Body
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err. Errors that did not come from this package
// are treated as transport failures.
func KindOf(err error) Kind {
	var claimErr *Error
	if errors.As(err, &claimErr) {
		return claimErr.Kind
	}
	return KindTransport
}

func excerpt(body []byte) string {
	if len(body) > maxBodyExcerpt {
		return string(body[:maxBodyExcerpt]) + "..."
	}
	return string(body)
}
