package bootcfg

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Number is an unsigned integer that also reads hex, octal, binary and size
// suffixes. It decodes from YAML and, through Decode, from envconfig.
type Number uint64

var suffixes = []struct {
	s     string
	shift uint
}{
	{"KiB", 10}, {"MiB", 20}, {"GiB", 30},
	{"K", 10}, {"M", 20}, {"G", 30},
}

// ParseNumber parses s as described on Number.
func ParseNumber(s string) (Number, error) {
	text := strings.TrimSpace(s)
	var shift uint
	for _, sfx := range suffixes {
		if rest, ok := strings.CutSuffix(text, sfx.s); ok {
			text, shift = strings.TrimSpace(rest), sfx.shift
			break
		}
	}
	n, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	if shift != 0 {
		if bits.LeadingZeros64(n) < int(shift) {
			return 0, fmt.Errorf("invalid number %q: overflows 64 bits", s)
		}
		n <<= shift
	}
	return Number(n), nil
}

// Decode implements envconfig.Decoder.
func (n *Number) Decode(value string) error {
	v, err := ParseNumber(value)
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	if err := n.Decode(node.Value); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

// MarshalYAML writes small values in decimal and the rest in hex.
func (n Number) MarshalYAML() (any, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: n.String()}, nil
}

func (n Number) String() string {
	if n < 0x1000 {
		return strconv.FormatUint(uint64(n), 10)
	}
	return fmt.Sprintf("%#x", uint64(n))
}
