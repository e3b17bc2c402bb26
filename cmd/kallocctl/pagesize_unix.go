//go:build unix

package main

import "golang.org/x/sys/unix"

// hostPageSize returns the page size of the machine running the tool.
func hostPageSize() uint64 {
	return uint64(unix.Getpagesize())
}
