//go:build !unix

package download

// Platforms without O_NOFOLLOW; the Lstat check before open still removes
// symlinked .part files.
const noFollowFlag = 0
