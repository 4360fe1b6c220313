// Package resources serves the bundled banner page, favicon, and error
// template. Assets are compiled in with go:embed; each is converted to its
// served form at most once per process.
package resources

import (
	"embed"
	"sync"
)

//go:embed assets
var assets embed.FS

var (
	bannerOnce sync.Once
	banner     string

	faviconOnce sync.Once
	favicon     []byte

	errOnce     sync.Once
	errTemplate string
)

// Banner returns the banner HTML template, containing a {{version}}
// placeholder for the caller to fill.
func Banner() string {
	bannerOnce.Do(func() {
		b, err := assets.ReadFile("assets/banner.html")
		if err != nil {
			panic("resources: banner.html missing from build: " + err.Error())
		}
		banner = string(b)
	})
	return banner
}

// Favicon returns the bundled icon bytes. The returned slice is shared;
// callers must not mutate it.
func Favicon() []byte {
	faviconOnce.Do(func() {
		b, err := assets.ReadFile("assets/favicon.ico")
		if err != nil {
			panic("resources: favicon.ico missing from build: " + err.Error())
		}
		favicon = b
	})
	return favicon
}

// ErrorTemplate returns the error-page HTML template with {{code}},
// {{reason}}, {{explanation}}, and {{error-type}} placeholders, or
// ("", false) if the template cannot be loaded, in which case callers fall
// back to a plain-text body.
func ErrorTemplate() (string, bool) {
	errOnce.Do(func() {
		b, err := assets.ReadFile("assets/error.html")
		if err != nil {
			return
		}
		errTemplate = string(b)
	})
	return errTemplate, errTemplate != ""
}
