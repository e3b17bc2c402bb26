package pool

import (
	"errors"
	"fmt"
	"strings"
)

// SkipChildren can be returned from a WalkFunc to skip the pool's children.
var SkipChildren = errors.New("skip children")

// WalkFunc is called for each pool visited by Walk. depth is 0 for the root.
type WalkFunc func(p Pool, depth int) error

// Walk visits root and everything derived from it depth first, parents before
// children and children oldest first. It stops at the first error other than
// SkipChildren and returns it.
func Walk(root Pool, fn WalkFunc) error {
	return walk(root, 0, fn)
}

func walk(p Pool, depth int, fn WalkFunc) error {
	if err := fn(p, depth); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, c := range p.Children() {
		if err := walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Describe returns a one-line summary of p, e.g.
//
//	vm "vm/vm1" [0x10000000, 0x10100000) used 0x4000/0x100000 children 0
func Describe(p Pool) string {
	if p.Destroyed() {
		return fmt.Sprintf("%s %q destroyed", p.Kind(), p.Name())
	}
	var sb strings.Builder
	b := p.Bounds()
	if p.Kind() == KindCapList {
		fmt.Fprintf(&sb, "%s %q ids [%d, %d) used %d/%d",
			p.Kind(), p.Name(), b.Base, b.End(), p.Allocated(), b.Size)
	} else {
		fmt.Fprintf(&sb, "%s %q %s used %#x/%#x", p.Kind(), p.Name(), b, p.Allocated(), b.Size)
	}
	switch t := p.(type) {
	case *SegmentPool:
		fmt.Fprintf(&sb, " pagesize %#x", t.PageSize())
	case *PagePool:
		fmt.Fprintf(&sb, " pagesize %#x", t.PageSize())
	}
	fmt.Fprintf(&sb, " children %d", len(p.Children()))
	return sb.String()
}

// Tree renders root and its descendants with Describe, two spaces of indent
// per level.
func Tree(root Pool) string {
	var sb strings.Builder
	_ = Walk(root, func(p Pool, depth int) error {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(Describe(p))
		sb.WriteByte('\n')
		return nil
	})
	return sb.String()
}
