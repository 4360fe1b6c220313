//go:build unix

package download

import "syscall"

// noFollowFlag makes opening a symlinked .part file fail instead of writing
// through the link.
const noFollowFlag = syscall.O_NOFOLLOW
