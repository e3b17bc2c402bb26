// Package bootcfg loads boot descriptors: YAML files listing the raw resource
// bounds the root pools are built from.
//
// A descriptor only needs the fields it changes; everything else keeps the
// value from pool.DefaultBootConfig:
//
//	page_size: 4KiB
//	vm:       {base: 0x1000_0000, size: 768MiB}
//	physical: {base: 0x8000_0000, size: 64MiB}
//	page_frames: 16MiB
//	ids:
//	  cap:   {base: 2, size: 254}
//	  space: {base: 1, size: 255}
//	  clist: {base: 1, size: 255}
//	roots:
//	  - {name: dma, kind: page, base: 0x9000_0000, size: 1MiB}
//
// Integers may be decimal, 0x hex, 0o octal or 0b binary, may contain
// underscores, and may end in K, M or G (optionally KiB, MiB, GiB).
package bootcfg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/kalloc/pool"
)

// File mirrors the YAML layout. Pointer fields are optional.
type File struct {
	PageSize   *Number `yaml:"page_size,omitempty"`
	VM         *Region `yaml:"vm,omitempty"`
	Physical   *Region `yaml:"physical,omitempty"`
	PageFrames *Number `yaml:"page_frames,omitempty"`
	IDs        IDs     `yaml:"ids,omitempty"`
	Roots      []Root  `yaml:"roots,omitempty"`
}

// IDs groups the identifier quotas.
type IDs struct {
	Cap   *Region `yaml:"cap,omitempty"`
	Space *Region `yaml:"space,omitempty"`
	CList *Region `yaml:"clist,omitempty"`
}

// Region is a base and a size.
type Region struct {
	Base Number `yaml:"base"`
	Size Number `yaml:"size"`
}

// Root is an extra named root pool.
type Root struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Base     Number `yaml:"base"`
	Size     Number `yaml:"size"`
	PageSize Number `yaml:"page_size,omitempty"`
	ID       Number `yaml:"id,omitempty"`
}

// Load reads and parses the descriptor at path.
func Load(path string) (pool.BootConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pool.BootConfig{}, fmt.Errorf("reading boot descriptor: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return pool.BootConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a descriptor, applies it over pool.DefaultBootConfig and
// validates the result. Unknown keys are errors.
func Parse(data []byte) (pool.BootConfig, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return pool.BootConfig{}, fmt.Errorf("parsing boot descriptor: %w", err)
	}

	cfg, err := f.Apply(pool.DefaultBootConfig())
	if err != nil {
		return pool.BootConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return pool.BootConfig{}, fmt.Errorf("invalid boot descriptor: %w", err)
	}
	return cfg, nil
}

// Apply overlays the fields set in f onto cfg.
func (f *File) Apply(cfg pool.BootConfig) (pool.BootConfig, error) {
	if f.PageSize != nil {
		cfg.PageSize = uint64(*f.PageSize)
	}
	if f.PageFrames != nil {
		cfg.PageFrames = uint64(*f.PageFrames)
	}
	for _, r := range []struct {
		src *Region
		dst *pool.Region
	}{
		{f.VM, &cfg.VM},
		{f.Physical, &cfg.Physical},
		{f.IDs.Cap, &cfg.CapIDs},
		{f.IDs.Space, &cfg.SpaceIDs},
		{f.IDs.CList, &cfg.CListIDs},
	} {
		if r.src != nil {
			*r.dst = r.src.region()
		}
	}

	for i, r := range f.Roots {
		kind, err := pool.ParseKind(r.Kind)
		if err != nil {
			return pool.BootConfig{}, fmt.Errorf("roots[%d] %q: %w", i, r.Name, err)
		}
		cfg.Roots = append(cfg.Roots, pool.RootConfig{
			Name:     r.Name,
			Kind:     kind,
			Base:     uint64(r.Base),
			Size:     uint64(r.Size),
			PageSize: uint64(r.PageSize),
			ID:       uint64(r.ID),
		})
	}
	return cfg, nil
}

func (r *Region) region() pool.Region {
	return pool.Region{Base: uint64(r.Base), Size: uint64(r.Size)}
}

// FromConfig builds the File that reproduces cfg exactly.
func FromConfig(cfg pool.BootConfig) *File {
	region := func(r pool.Region) *Region {
		return &Region{Base: Number(r.Base), Size: Number(r.Size)}
	}
	ps, frames := Number(cfg.PageSize), Number(cfg.PageFrames)
	f := &File{
		PageSize:   &ps,
		VM:         region(cfg.VM),
		Physical:   region(cfg.Physical),
		PageFrames: &frames,
		IDs: IDs{
			Cap:   region(cfg.CapIDs),
			Space: region(cfg.SpaceIDs),
			CList: region(cfg.CListIDs),
		},
	}
	for _, rc := range cfg.Roots {
		f.Roots = append(f.Roots, Root{
			Name:     rc.Name,
			Kind:     rc.Kind.String(),
			Base:     Number(rc.Base),
			Size:     Number(rc.Size),
			PageSize: Number(rc.PageSize),
			ID:       Number(rc.ID),
		})
	}
	return f
}

// Encode writes cfg as a descriptor that Parse reads back unchanged.
func Encode(w io.Writer, cfg pool.BootConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromConfig(cfg)); err != nil {
		return fmt.Errorf("encoding boot descriptor: %w", err)
	}
	return enc.Close()
}
