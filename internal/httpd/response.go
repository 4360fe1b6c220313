package httpd

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/jakshin/mixcaster-sub000/internal/metrics"
	"github.com/jakshin/mixcaster-sub000/internal/resources"
	"github.com/jakshin/mixcaster-sub000/internal/version"
)

// serverHeader identifies this server in every response.
var serverHeader = fmt.Sprintf("%s/%s (%s)", version.Product, version.Version, runtime.GOOS)

// ResponseWriter emits HTTP/1.1 responses onto a connection. Every response
// carries Date, Server, Connection: close, and Accept-Ranges: bytes; header
// lines end with CRLF and a blank line separates headers from the body.
type ResponseWriter struct {
	w   *bufio.Writer
	now func() time.Time
}

// NewResponseWriter wraps w for response emission.
func NewResponseWriter(w io.Writer) *ResponseWriter {
	return &ResponseWriter{w: bufio.NewWriterSize(w, copyBufSize), now: time.Now}
}

// copyBufSize sizes both the response buffer and file-streaming chunks.
const copyBufSize = 64 * 1024

func (rw *ResponseWriter) writeStatus(code int) {
	fmt.Fprintf(rw.w, "HTTP/1.1 %d %s\r\n", code, StatusReason(code))
	rw.header("Date", rw.now().UTC().Format(http.TimeFormat))
	rw.header("Server", serverHeader)
	rw.header("Connection", "close")
	rw.header("Accept-Ranges", "bytes")
	metrics.CountRequest(code)
}

func (rw *ResponseWriter) header(name, value string) {
	fmt.Fprintf(rw.w, "%s: %s\r\n", name, value)
}

func (rw *ResponseWriter) endHeaders() {
	rw.w.WriteString("\r\n")
}

// Flush pushes any buffered output to the connection.
func (rw *ResponseWriter) Flush() error { return rw.w.Flush() }

// Write streams body bytes (after headers have been emitted).
func (rw *ResponseWriter) Write(p []byte) (int, error) { return rw.w.Write(p) }

// WriteSuccess emits a 200 header block. Extra headers follow the common
// ones. The caller streams the body afterwards (unless the request is HEAD).
func (rw *ResponseWriter) WriteSuccess(contentType string, contentLength int64, lastModified time.Time, extra ...Header) {
	rw.writeStatus(200)
	rw.header("Content-Type", contentType)
	rw.header("Content-Length", fmt.Sprintf("%d", contentLength))
	if !lastModified.IsZero() {
		rw.header("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}
	for _, h := range extra {
		rw.header(h.Name, h.Value)
	}
	rw.endHeaders()
}

// WritePartial emits a 206 header block for rng within a file of size bytes.
func (rw *ResponseWriter) WritePartial(contentType string, rng ByteRange, size int64, lastModified time.Time) {
	rw.writeStatus(206)
	rw.header("Content-Type", contentType)
	rw.header("Content-Length", fmt.Sprintf("%d", rng.Length()))
	rw.header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, size))
	if !lastModified.IsZero() {
		rw.header("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}
	rw.endHeaders()
}

// WriteNotModified emits a bodyless 304.
func (rw *ResponseWriter) WriteNotModified() {
	rw.writeStatus(304)
	rw.endHeaders()
}

// WriteRedirect emits a 301 to location with a short text body.
func (rw *ResponseWriter) WriteRedirect(req *Request, location string) {
	body := fmt.Sprintf("Moved to %s\r\n", location)
	rw.writeStatus(301)
	rw.header("Location", location)
	rw.header("Content-Type", "text/plain; charset=UTF-8")
	rw.header("Content-Length", fmt.Sprintf("%d", len(body)))
	rw.endHeaders()
	if req == nil || !req.IsHead() {
		rw.w.WriteString(body)
	}
}

// WriteError emits an error response for err, rendering the HTML error page
// when its template resource loaded, else a plain-text body. Any non-*Error
// is reported as a 500. HEAD requests get the headers without the body.
func (rw *ResponseWriter) WriteError(req *Request, err error) {
	httpErr, ok := err.(*Error)
	if !ok {
		httpErr = WrapError(500, "", err)
	}

	body, contentType := errorBody(httpErr)
	rw.writeStatus(httpErr.Code)
	rw.header("Content-Type", contentType)
	rw.header("Content-Length", fmt.Sprintf("%d", len(body)))
	rw.endHeaders()
	if req == nil || !req.IsHead() {
		rw.w.WriteString(body)
	}
}

func errorBody(httpErr *Error) (body, contentType string) {
	reason := StatusReason(httpErr.Code)
	errType := ""
	if httpErr.Err != nil {
		errType = fmt.Sprintf("%T", httpErr.Err)
	}

	if tmpl, ok := resources.ErrorTemplate(); ok {
		page := tmpl
		page = strings.ReplaceAll(page, "{{code}}", fmt.Sprintf("%d", httpErr.Code))
		page = strings.ReplaceAll(page, "{{reason}}", reason)
		page = strings.ReplaceAll(page, "{{explanation}}", httpErr.Explanation)
		page = strings.ReplaceAll(page, "{{error-type}}", errType)
		return page, "text/html; charset=UTF-8"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d %s\r\n", httpErr.Code, reason)
	if httpErr.Explanation != "" {
		fmt.Fprintf(&b, "%s\r\n", httpErr.Explanation)
	}
	return b.String(), "text/plain; charset=UTF-8"
}

// NotModifiedSince reports whether the request's If-Modified-Since header
// makes lastModified stale. Sub-second precision is dropped before the
// comparison, matching the one-second resolution of HTTP dates.
func (req *Request) NotModifiedSince(lastModified time.Time) bool {
	ims := req.Header("If-Modified-Since")
	if ims == "" || lastModified.IsZero() {
		return false
	}
	since, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	return !lastModified.Truncate(time.Second).After(since)
}
