//go:build !unix

package main

import "github.com/joshuapare/kalloc/internal/align"

func hostPageSize() uint64 {
	return align.DefaultPageSize
}
