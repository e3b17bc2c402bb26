package pool

import (
	"fmt"

	"github.com/joshuapare/kalloc/alloc"
)

// Attribute errors. All of them wrap alloc.ErrInvalidArgument.
var (
	// ErrNoExtent indicates an Attr with neither SetRange nor SetSize.
	ErrNoExtent = fmt.Errorf("%w: no range or size", alloc.ErrInvalidArgument)

	// ErrZeroSize indicates a zero-sized range or size.
	ErrZeroSize = fmt.Errorf("%w: zero size", alloc.ErrInvalidArgument)

	// ErrRangeOverflow indicates base+size does not fit in a Word.
	ErrRangeOverflow = fmt.Errorf("%w: range overflows", alloc.ErrInvalidArgument)

	// ErrPageSize indicates a page size that is not a power of two, or one that
	// disagrees with the parent's.
	ErrPageSize = fmt.Errorf("%w: bad page size", alloc.ErrInvalidArgument)

	// ErrParentKind indicates a parent pool of a kind the child cannot derive from.
	ErrParentKind = fmt.Errorf("%w: incompatible parent kind", alloc.ErrInvalidArgument)

	// ErrParentMismatch indicates Derive called with an Attr naming another parent.
	ErrParentMismatch = fmt.Errorf("%w: attr names a different parent", alloc.ErrInvalidArgument)

	// ErrRootOnly indicates a parent on an Attr for a capability list.
	ErrRootOnly = fmt.Errorf("%w: capability lists cannot have a parent", alloc.ErrInvalidArgument)

	// ErrPageMultiple indicates a root page pool whose size is not a whole
	// number of pages.
	ErrPageMultiple = fmt.Errorf("%w: size is not a page multiple", alloc.ErrInvalidArgument)
)
