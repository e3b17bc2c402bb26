package pool

import (
	"fmt"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/logger"
)

// Kind identifies what a pool hands out.
type Kind uint8

const (
	KindVM Kind = iota + 1
	KindSegment
	KindPage
	KindCapList
)

func (k Kind) String() string {
	switch k {
	case KindVM:
		return "vm"
	case KindSegment:
		return "segment"
	case KindPage:
		return "page"
	case KindCapList:
		return "clist"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindVM; k <= KindCapList; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown pool kind %q", alloc.ErrInvalidArgument, s)
}

// Pool is the part every pool kind has in common.
type Pool interface {
	Kind() Kind
	Name() string

	// Parent returns the pool this one was derived from, or nil for a root.
	Parent() Pool

	// Children returns the live pools derived from this one, oldest first.
	Children() []Pool

	// Bounds is the space the pool manages: addresses for memory pools,
	// identifiers for capability lists.
	Bounds() alloc.RangeItem
	Allocated() alloc.Word
	Available() alloc.Word
	Stats() alloc.Stats

	// Destroy releases the pool's space back to its parent. It panics while
	// anything is still allocated from the pool.
	Destroy()
	Destroyed() bool

	tree() *node
}

// Compile-time interface checks.
var (
	_ Pool = (*VMPool)(nil)
	_ Pool = (*SegmentPool)(nil)
	_ Pool = (*PagePool)(nil)
	_ Pool = (*CapList)(nil)
)

// node is the family-tree bookkeeping shared by all pool kinds. Children are
// non-owning references kept for ordering checks and diagnostics; release
// hands the reservation back to the parent's allocator.
type node struct {
	kind      Kind
	name      string
	self      Pool
	parent    *node
	children  []*node
	reserved  alloc.RangeItem // the space taken from the parent
	release   func()
	destroyed bool
	derived   int // children ever derived, for default names
}

func (n *node) Kind() Kind      { return n.kind }
func (n *node) Name() string    { return n.name }
func (n *node) Destroyed() bool { return n.destroyed }
func (n *node) tree() *node     { return n }

func (n *node) Parent() Pool {
	if n.parent == nil {
		return nil
	}
	return n.parent.self
}

func (n *node) Children() []Pool {
	out := make([]Pool, len(n.children))
	for i, c := range n.children {
		out[i] = c.self
	}
	return out
}

// check panics if the pool has been destroyed.
func (n *node) check(op string) {
	if n.destroyed {
		alloc.Fail(op, "%s pool %q used after Destroy", n.kind, n.name)
	}
}

// checkAttr validates a and makes sure it does not name another parent.
func (n *node) checkAttr(a *Attr) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.parent != nil && a.parent.tree() != n {
		return ErrParentMismatch
	}
	return nil
}

// checkNotChild panics if r overlaps the reservation of a live child. Such a
// range can only be freed by destroying the child.
func (n *node) checkNotChild(op string, r alloc.RangeItem) {
	for _, c := range n.children {
		if c.reserved.Overlaps(r) {
			alloc.Fail(op, "%s overlaps child pool %q at %s", r, c.name, c.reserved)
		}
	}
}

// adopt links child under n. reserved is what n's allocator handed out for it
// and release must give exactly that back.
func (n *node) adopt(child *node, reserved alloc.RangeItem, release func()) {
	n.derived++
	if child.name == "" {
		child.name = fmt.Sprintf("%s/%s%d", n.name, child.kind, n.derived)
	}
	child.parent = n
	child.reserved = reserved
	child.release = release
	n.children = append(n.children, child)

	logger.L.Debug("pool derived",
		"kind", child.kind.String(), "name", child.name, "parent", n.name, "range", reserved.String())
}

// destroy tears the pool down once nothing is allocated from it.
func (n *node) destroy(allocated alloc.Word) {
	n.check("Destroy")
	if allocated != 0 {
		alloc.Fail("Destroy", "%s pool %q still has %#x allocated and %d children",
			n.kind, n.name, allocated, len(n.children))
	}
	if p := n.parent; p != nil {
		n.release()
		for i, c := range p.children {
			if c == n {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	n.destroyed = true
	logger.L.Debug("pool destroyed", "kind", n.kind.String(), "name", n.name)
}

func rootName(a *Attr, k Kind) string {
	if a.name != "" {
		return a.name
	}
	return k.String()
}

// deriveErr wraps an allocator error from the parent side of a derivation.
func deriveErr(parent *node, k Kind, a *Attr, err error) error {
	return fmt.Errorf("derive %s pool %s from %q: %w", k, a.Extent(), parent.name, err)
}
