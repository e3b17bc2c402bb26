package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/pool"
)

var (
	clistBase uint64
	clistSize uint64
	clistFree uint64
)

func init() {
	cmd := newCListCmd()
	cmd.Flags().Uint64Var(&clistBase, "base", 2, "First identifier")
	cmd.Flags().Uint64Var(&clistSize, "size", 14, "Number of identifiers")
	cmd.Flags().Uint64Var(&clistFree, "free", 9, "Identifier to free once the list is full")
	rootCmd.AddCommand(cmd)
}

func newCListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clist",
		Short: "Exhaust a capability list, free one entry and reallocate it",
		Long: `The clist command allocates every identifier of a capability list,
shows that the next allocation is refused, frees one identifier and shows
that the next allocation returns exactly that one.

Example:
  kallocctl clist
  kallocctl clist --base 1 --size 255 --free 17`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCList()
		},
	}
	return cmd
}

// CListReport is the JSON output of clist.
type CListReport struct {
	Base      uint64   `json:"base"`
	Size      uint64   `json:"size"`
	Allocated []uint64 `json:"allocated"`
	Exhausted bool     `json:"exhausted"`
	Freed     uint64   `json:"freed"`
	Realloc   uint64   `json:"reallocated"`
}

func runCList() error {
	c, err := pool.NewCapList(pool.NewAttr().SetRange(clistBase, clistSize).SetName("clist"))
	if err != nil {
		return err
	}

	rep := CListReport{Base: clistBase, Size: clistSize}
	items := make(map[uint64]pool.CapItem)
	for {
		it, err := c.AllocAny()
		if errors.Is(err, alloc.ErrExhausted) {
			rep.Exhausted = true
			break
		}
		if err != nil {
			return err
		}
		items[it.Unit()] = it
		rep.Allocated = append(rep.Allocated, it.Unit())
	}

	it, ok := items[clistFree]
	if !ok {
		return fmt.Errorf("--free %d is outside [%d, %d)", clistFree, clistBase, clistBase+clistSize)
	}
	c.Free(it)
	rep.Freed = it.Unit()

	again, err := c.AllocAny()
	if err != nil {
		return err
	}
	rep.Realloc = again.Unit()

	if jsonOut {
		return printJSON(rep)
	}
	printInfo("%s\n", pool.Describe(c))
	printInfo("Allocated %s identifiers, next allocation: exhausted\n", count(uint64(len(rep.Allocated))))
	printVerbose("Identifiers: %v\n", rep.Allocated)
	printInfo("Freed %d, next allocation returned %d\n", rep.Freed, rep.Realloc)
	return nil
}
