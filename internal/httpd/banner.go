package httpd

import (
	"context"
	"strings"
	"time"

	"github.com/jakshin/mixcaster-sub000/internal/resources"
	"github.com/jakshin/mixcaster-sub000/internal/version"
)

// bannerEpoch anchors the banner's synthetic Last-Modified date; the running
// version is folded in as hours, minutes, and seconds so the date changes
// whenever the version does.
var bannerEpoch = time.Date(2016, time.May, 12, 3, 0, 0, 0, time.UTC)

func bannerLastModified() time.Time {
	major, minor, patch := version.Parts(version.Version)
	return bannerEpoch.Add(
		time.Duration(major)*time.Hour +
			time.Duration(minor)*time.Minute +
			time.Duration(patch)*time.Second)
}

// bannerResponder serves the root page.
type bannerResponder struct{}

func (bannerResponder) respond(_ context.Context, req *Request, rw *ResponseWriter) error {
	lastMod := bannerLastModified()
	if req.NotModifiedSince(lastMod) {
		rw.WriteNotModified()
		return nil
	}
	body := strings.ReplaceAll(resources.Banner(), "{{version}}", version.Version)
	rw.WriteSuccess("text/html; charset=UTF-8", int64(len(body)), lastMod,
		Header{Name: "Cache-Control", Value: "no-cache"})
	if !req.IsHead() {
		rw.Write([]byte(body))
	}
	return nil
}

// faviconModTime is fixed; the icon ships in the binary and never changes.
var faviconModTime = time.Date(2016, time.May, 8, 4, 0, 0, 0, time.UTC)

// faviconResponder serves the embedded favicon for any path ending in
// /favicon.ico.
type faviconResponder struct{}

func (faviconResponder) respond(_ context.Context, req *Request, rw *ResponseWriter) error {
	if req.NotModifiedSince(faviconModTime) {
		rw.WriteNotModified()
		return nil
	}
	icon := resources.Favicon()
	rw.WriteSuccess("image/x-icon", int64(len(icon)), faviconModTime)
	if !req.IsHead() {
		rw.Write(icon)
	}
	return nil
}
