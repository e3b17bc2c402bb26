package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kalloc/internal/bootcfg"
	"github.com/joshuapare/kalloc/pool"
)

var (
	bootDump bool
)

func init() {
	cmd := newBootCmd()
	cmd.Flags().BoolVar(&bootDump, "dump", false, "Print the effective boot descriptor as YAML")
	rootCmd.AddCommand(cmd)
}

func newBootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boot [descriptor]",
		Short: "Build the root pools from a boot descriptor",
		Long: `The boot command builds the root pools described by a YAML boot
descriptor and prints the resulting pool trees. Without a descriptor the
built-in default layout is used.

Example:
  kallocctl boot board.yaml
  kallocctl boot board.yaml --json
  kallocctl boot --dump > board.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoot(args)
		},
	}
	return cmd
}

// poolInfo is the JSON shape of a pool and its descendants.
type poolInfo struct {
	Name      string     `json:"name"`
	Kind      string     `json:"kind"`
	Base      uint64     `json:"base"`
	Size      uint64     `json:"size"`
	Allocated uint64     `json:"allocated"`
	PageSize  uint64     `json:"page_size,omitempty"`
	Children  []poolInfo `json:"children,omitempty"`
}

func describePool(p pool.Pool) poolInfo {
	b := p.Bounds()
	info := poolInfo{
		Name:      p.Name(),
		Kind:      p.Kind().String(),
		Base:      b.Base,
		Size:      b.Size,
		Allocated: p.Allocated(),
	}
	if ps, ok := p.(interface{ PageSize() uint64 }); ok {
		info.PageSize = ps.PageSize()
	}
	for _, c := range p.Children() {
		info.Children = append(info.Children, describePool(c))
	}
	return info
}

func runBoot(args []string) error {
	cfg := pool.DefaultBootConfig()
	if len(args) == 1 {
		printVerbose("Loading boot descriptor: %s\n", args[0])
		var err error
		if cfg, err = bootcfg.Load(args[0]); err != nil {
			return err
		}
	}

	if bootDump {
		return bootcfg.Encode(os.Stdout, cfg)
	}

	b, err := pool.NewBootstrap(cfg)
	if err != nil {
		return fmt.Errorf("failed to build root pools: %w", err)
	}

	roots := b.Roots()
	if jsonOut {
		out := make([]poolInfo, 0, len(roots))
		for _, r := range roots {
			out = append(out, describePool(r))
		}
		return printJSON(out)
	}

	printInfo("Root pools (%d registered names):\n", len(b.Names()))
	for _, r := range roots {
		printInfo("%s", pool.Tree(r))
	}
	printVerbose("\nLookup names: %v\n", b.Names())
	return nil
}
