// Package version holds the product version shown in the Server header,
// the banner page, and the synthesized banner Last-Modified date.
package version

import (
	"strconv"
	"strings"
)

// Version is the product version, bumped on release.
const Version = "2.0.0"

// Product is the short product name used in the Server header and log prefix.
const Product = "mixcaster"

// Parts returns the numeric major, minor, patch components of v.
// Missing or malformed components come back as 0, so callers always get
// something usable for the banner Last-Modified synthesis.
func Parts(v string) (major, minor, patch int) {
	fields := strings.SplitN(v, ".", 3)
	nums := make([]int, 3)
	for i := 0; i < len(fields) && i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil || n < 0 {
			continue
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2]
}
