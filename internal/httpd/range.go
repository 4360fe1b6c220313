package httpd

import (
	"strconv"
	"strings"
)

// ByteRange is a resolved inclusive byte range within a file.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes the range covers.
func (r ByteRange) Length() int64 { return r.End - r.Start + 1 }

// rawRange is a parsed but not yet size-resolved Range header.
// -1 marks an absent part: "bytes=5-" has End -1, "bytes=-5" has Start -1.
type rawRange struct {
	Start int64
	End   int64
}

// parseRange parses a Range header value. A nil result with nil error means
// "serve the whole file": missing or non-bytes units, unparsable numbers,
// start greater than end, and the degenerate "-0" all land there. Multiple
// ranges are a hard 500.
func parseRange(header string) (*rawRange, error) {
	if header == "" || !strings.HasPrefix(header, "bytes=") {
		return nil, nil
	}
	if strings.Contains(header, ",") {
		return nil, NewError(500, "multiple byte ranges are not supported")
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Count(spec, "-") != 1 {
		return nil, nil
	}
	startStr, endStr, _ := strings.Cut(spec, "-")

	r := rawRange{Start: -1, End: -1}
	if startStr != "" {
		n, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || n < 0 {
			return nil, nil
		}
		r.Start = n
	}
	if endStr != "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n < 0 {
			return nil, nil
		}
		r.End = n
	}

	if r.Start == -1 && r.End == -1 {
		return nil, nil
	}
	if r.Start != -1 && r.End != -1 && r.Start > r.End {
		return nil, nil
	}
	if r.Start == -1 && r.End == 0 {
		// "-0" asks for the final zero bytes
		return nil, nil
	}
	return &r, nil
}

// translateRange resolves a parsed range against a file of size bytes.
// nil means serve the whole file. A start at or past EOF is a 416.
func translateRange(raw *rawRange, size int64) (*ByteRange, error) {
	if raw == nil || size == 0 {
		return nil, nil
	}
	switch {
	case raw.Start >= 0 && raw.Start >= size:
		return nil, NewError(416, "range start is beyond the end of the file")
	case raw.Start >= 0 && (raw.End == -1 || raw.End >= size):
		return &ByteRange{Start: raw.Start, End: size - 1}, nil
	case raw.Start >= 0:
		return &ByteRange{Start: raw.Start, End: raw.End}, nil
	case raw.End >= 0:
		start := size - raw.End
		if start < 0 {
			start = 0
		}
		return &ByteRange{Start: start, End: size - 1}, nil
	}
	return nil, NewError(500, "invalid byte range")
}

// ResolveRange parses the request's Range header and resolves it against a
// file of size bytes. nil means serve the whole file.
func (req *Request) ResolveRange(size int64) (*ByteRange, error) {
	raw, err := parseRange(req.Header("Range"))
	if err != nil {
		return nil, err
	}
	return translateRange(raw, size)
}
