//go:build linux || darwin
// +build linux darwin

package linesort

import (
	"golang.org/x/sys/unix"
	"v.io/x/lib/vlog"
)

func defaultMaxOpenFiles() int {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		vlog.Errorf("getrlimit: %v", err)
		return fanInFromLimit(256)
	}
	return fanInFromLimit(uint64(lim.Cur))
}
