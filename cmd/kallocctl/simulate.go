package main

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/pool"
)

var (
	simKind     string
	simOps      int
	simPages    uint64
	simMaxPages int
	simSeed     int64
)

func init() {
	cmd := newSimulateCmd()
	cmd.Flags().StringVar(&simKind, "kind", "segment", "Pool kind: vm, segment or page")
	cmd.Flags().IntVar(&simOps, "ops", 10000, "Number of alloc/free operations")
	cmd.Flags().Uint64Var(&simPages, "pages", 1024, "Pool size in pages")
	cmd.Flags().IntVar(&simMaxPages, "max-pages", 8, "Largest single allocation in pages (range pools)")
	cmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed (default KALLOC_SEED)")
	rootCmd.AddCommand(cmd)
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a random alloc/free workload against a pool",
		Long: `The simulate command runs a seeded random mix of anonymous allocations
and frees against a fresh root pool, then reports utilisation, fragmentation
and allocator counters. Finally it frees everything and checks the pool is
whole again.

Example:
  kallocctl simulate
  kallocctl simulate --kind vm --ops 50000 --max-pages 32
  KALLOC_SEED=7 kallocctl simulate --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate()
		},
	}
	return cmd
}

// memPool is what simulate needs from VM, segment and page pools.
type memPool interface {
	pool.Pool
	Alloc(req alloc.RangeItem) (alloc.RangeItem, error)
	Free(r alloc.RangeItem)
}

// freeLister is implemented by range-backed pools.
type freeLister interface {
	FreeRanges() []alloc.RangeItem
	Largest() uint64
}

// SimReport summarises a simulate run.
type SimReport struct {
	Kind          string      `json:"kind"`
	Seed          int64       `json:"seed"`
	Ops           int         `json:"ops"`
	PoolSize      uint64      `json:"pool_size"`
	Live          int         `json:"live"`
	Allocated     uint64      `json:"allocated"`
	Utilisation   float64     `json:"utilisation"`
	Fragments     int         `json:"fragments,omitempty"`
	Largest       uint64      `json:"largest_free,omitempty"`
	Fragmentation float64     `json:"fragmentation"`
	Exhausted     int         `json:"exhausted"`
	Stats         alloc.Stats `json:"stats"`
	Drained       bool        `json:"drained"`
}

func newSimPool(kind string, ps, pages uint64) (memPool, error) {
	kd, err := pool.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	attr := pool.NewAttr().SetPageSize(ps).SetName("sim")
	switch kd {
	case pool.KindVM:
		p, err := pool.NewVMPool(attr.SetRange(0x1000_0000, pages*ps))
		if err != nil {
			return nil, err
		}
		return p, nil
	case pool.KindSegment:
		p, err := pool.NewSegmentPool(attr.SetRange(0x8000_0000, pages*ps))
		if err != nil {
			return nil, err
		}
		return p, nil
	case pool.KindPage:
		p, err := pool.NewPagePool(attr.SetRange(0x8000_0000, pages*ps))
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("cannot simulate %s pools", kd)
	}
}

func simulate(p memPool, seed int64, ops, maxPages int, ps uint64) (SimReport, error) {
	rng := rand.New(rand.NewSource(seed))
	rep := SimReport{Kind: p.Kind().String(), Seed: seed, Ops: ops, PoolSize: p.Bounds().Size}

	var live []alloc.RangeItem
	for range ops {
		if len(live) == 0 || rng.Intn(10) < 6 {
			size := uint64(1+rng.Intn(maxPages)) * ps
			r, err := p.Alloc(alloc.AnyRange(size))
			if errors.Is(err, alloc.ErrExhausted) {
				rep.Exhausted++
				continue
			}
			if err != nil {
				return SimReport{}, err
			}
			live = append(live, r)
			continue
		}
		i := rng.Intn(len(live))
		p.Free(live[i])
		live[i] = live[len(live)-1]
		live = live[:len(live)-1]
	}

	rep.Live = len(live)
	rep.Allocated = p.Allocated()
	rep.Utilisation = float64(rep.Allocated) / float64(rep.PoolSize)
	rep.Stats = p.Stats()
	if fl, ok := p.(freeLister); ok {
		rep.Fragments = len(fl.FreeRanges())
		rep.Largest = fl.Largest()
		if free := p.Available(); free > 0 {
			rep.Fragmentation = 1 - float64(rep.Largest)/float64(free)
		}
	}

	for _, r := range live {
		p.Free(r)
	}
	rep.Drained = p.Allocated() == 0
	if fl, ok := p.(freeLister); ok {
		rep.Drained = rep.Drained && len(fl.FreeRanges()) == 1
	}
	return rep, nil
}

func runSimulate() error {
	if simOps < 0 || simMaxPages < 1 || simPages == 0 {
		return fmt.Errorf("--ops must be >= 0, --max-pages >= 1 and --pages >= 1")
	}
	seed := simSeed
	if seed == 0 {
		seed = settings.Seed
	}
	ps := settings.pageSize()

	p, err := newSimPool(simKind, ps, simPages)
	if err != nil {
		return err
	}
	printVerbose("Simulating %d ops on %s (page size %#x, seed %d)\n", simOps, pool.Describe(p), ps, seed)

	rep, err := simulate(p, seed, simOps, simMaxPages, ps)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(rep)
	}

	printInfo("Simulation: %s pool, %s ops, seed %d\n", rep.Kind, count(rep.Ops), rep.Seed)
	printInfo("  Pool size:     %s (%s bytes)\n", formatBytes(rep.PoolSize), count(rep.PoolSize))
	printInfo("  Live:          %s allocations, %s\n", count(rep.Live), formatBytes(rep.Allocated))
	printInfo("  Utilisation:   %.1f%%\n", rep.Utilisation*100)
	if rep.Fragments > 0 {
		printInfo("  Free list:     %s intervals, largest %s\n", count(rep.Fragments), formatBytes(rep.Largest))
	}
	printInfo("  Fragmentation: %.1f%%\n", rep.Fragmentation*100)
	printInfo("  Exhausted:     %s\n", count(rep.Exhausted))
	printInfo("  Calls:         %s alloc (%s failed), %s free\n",
		count(rep.Stats.AllocCalls), count(rep.Stats.AllocFailed), count(rep.Stats.FreeCalls))
	if rep.Fragments > 0 {
		printInfo("  Splits:        %s, coalesced %s forward / %s backward\n",
			count(rep.Stats.Splits), count(rep.Stats.CoalesceForward), count(rep.Stats.CoalesceBackward))
	}
	if !rep.Drained {
		return fmt.Errorf("pool did not return to a single free interval after draining")
	}
	printInfo("  Drained:       ok\n")
	return nil
}
