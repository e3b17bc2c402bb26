package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kalloc/pool"
)

var (
	deriveKind   string
	deriveLevels int
	derivePages  uint64
)

func init() {
	cmd := newDeriveCmd()
	cmd.Flags().StringVar(&deriveKind, "kind", "vm", "Pool kind: vm, segment or page")
	cmd.Flags().IntVar(&deriveLevels, "levels", 6, "Number of nested pools to derive")
	cmd.Flags().Uint64Var(&derivePages, "pages", 1024, "Root pool size in pages")
	rootCmd.AddCommand(cmd)
}

func newDeriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Nest derived pools and tear them down leaf first",
		Long: `The derive command builds a root pool, derives a chain of child pools
where each takes half of what its parent has left, prints the tree and then
destroys the chain from the deepest pool up.

Example:
  kallocctl derive
  kallocctl derive --kind page --levels 8 --pages 4096`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive()
		},
	}
	return cmd
}

// deriveChild derives half of parent's free space from parent.
func deriveChild(parent memPool, level int) (memPool, error) {
	attr := pool.NewAttr().
		SetParent(parent).
		SetSize(parent.Available() / 2).
		SetName(fmt.Sprintf("level%d", level))

	switch parent.Kind() {
	case pool.KindVM:
		p, err := pool.NewVMPool(attr)
		if err != nil {
			return nil, err
		}
		return p, nil
	case pool.KindSegment:
		p, err := pool.NewSegmentPool(attr)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		p, err := pool.NewPagePool(attr)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// DeriveReport is the JSON output of derive.
type DeriveReport struct {
	Tree      poolInfo `json:"tree"`
	Levels    int      `json:"levels"`
	Destroyed int      `json:"destroyed"`
	RootUsed  uint64   `json:"root_allocated_after"`
}

func runDerive() error {
	if deriveLevels < 1 {
		return fmt.Errorf("--levels must be at least 1")
	}
	ps := settings.pageSize()
	root, err := newSimPool(deriveKind, ps, derivePages)
	if err != nil {
		return err
	}

	chain := []memPool{root}
	for level := 1; level <= deriveLevels; level++ {
		child, err := deriveChild(chain[len(chain)-1], level)
		if err != nil {
			return fmt.Errorf("deriving level %d: %w", level, err)
		}
		printVerbose("Derived %s\n", pool.Describe(child))
		chain = append(chain, child)
	}

	rep := DeriveReport{Tree: describePool(root), Levels: deriveLevels}
	if !jsonOut {
		printInfo("%s", pool.Tree(root))
	}

	for i := len(chain) - 1; i > 0; i-- {
		name := chain[i].Name()
		chain[i].Destroy()
		rep.Destroyed++
		printVerbose("Destroyed %s, parent now %s\n", name, pool.Describe(chain[i-1]))
	}
	rep.RootUsed = root.Allocated()

	if jsonOut {
		return printJSON(rep)
	}
	printInfo("Destroyed %d pools leaf first; root has %s allocated\n",
		rep.Destroyed, formatBytes(rep.RootUsed))
	return nil
}
