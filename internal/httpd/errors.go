package httpd

import "fmt"

// Error is an HTTP-visible failure: a status code, an optional explanation
// shown in the error page body, and an optional underlying cause whose type
// also shows up in the error page.
type Error struct {
	Code        int
	Explanation string
	Err         error
}

func (e *Error) Error() string {
	if e.Explanation != "" {
		return fmt.Sprintf("%d %s: %s", e.Code, StatusReason(e.Code), e.Explanation)
	}
	return fmt.Sprintf("%d %s", e.Code, StatusReason(e.Code))
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error with an explanation.
func NewError(code int, explanation string) *Error {
	return &Error{Code: code, Explanation: explanation}
}

// WrapError builds an Error around a cause.
func WrapError(code int, explanation string, err error) *Error {
	return &Error{Code: code, Explanation: explanation, Err: err}
}

// StatusReason returns the reason phrase for the status codes this server
// emits.
func StatusReason(code int) string {
	switch code {
	case 200:
		return "OK"
	case 206:
		return "Partial Content"
	case 301:
		return "Moved Permanently"
	case 304:
		return "Not Modified"
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 416:
		return "Range Not Satisfiable"
	case 500:
		return "Internal Server Error"
	case 505:
		return "HTTP Version Not Supported"
	}
	return "Error"
}
