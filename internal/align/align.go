// Package align holds the power-of-two alignment helpers shared by the
// allocators and pools. Page-granular pools require page-aligned bases, and
// range math elsewhere needs overflow-safe end computations.
package align

// DefaultPageSize is the page size assumed when no page size is configured.
// ARMv7/ARMv8 small pages are 4 KiB.
const DefaultPageSize = 0x1000

// IsPow2 reports whether n is a non-zero power of two.
func IsPow2(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// Down returns n aligned down to a multiple of a. a must be a power of two.
//
// Example:
//
//	Down(0x1234, 0x1000) = 0x1000
//	Down(0x1000, 0x1000) = 0x1000
func Down(n, a uint64) uint64 {
	return n &^ (a - 1)
}

// Up returns n aligned up to the next multiple of a. a must be a power of two.
// The result wraps to zero when n is within a of the top of the address space;
// callers that care use UpChecked.
//
// Example:
//
//	Up(1, 0x1000)      = 0x1000
//	Up(0x1000, 0x1000) = 0x1000
//	Up(0x1001, 0x1000) = 0x2000
func Up(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}

// UpChecked is Up with overflow detection.
func UpChecked(n, a uint64) (uint64, bool) {
	if n > ^uint64(0)-(a-1) {
		return 0, false
	}
	return Up(n, a), true
}

// IsAligned reports whether n is a multiple of a. a must be a power of two.
func IsAligned(n, a uint64) bool {
	return n&(a-1) == 0
}

// End returns base+size and whether the sum fits in 64 bits. An end equal to
// 2^64 (size reaching the very top) is reported as overflow.
func End(base, size uint64) (uint64, bool) {
	end := base + size
	return end, end >= base
}

// Pages returns the number of a-sized pages needed to cover size bytes.
func Pages(size, a uint64) uint64 {
	if size == 0 {
		return 0
	}
	return (size-1)/a + 1
}
