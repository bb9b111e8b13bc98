package graph

import (
	"context"

	"github.com/hupe1980/ipintel/internal/format"
)

type cursor struct {
	ctx      context.Context
	g        *Graph
	addr     []byte
	bitIndex int
	current  uint64
	index    uint32
	// skip counts the address bits still to consume before moving. It is a
	// byte in the file format and wraps like one.
	skip uint8
}

// bit reports whether bit bitIndex of the address is set. Bit 0 is the
// least significant bit of the last byte.
func (c *cursor) bit() bool {
	b := c.addr[len(c.addr)-1-c.bitIndex/8]
	return b&(1<<(c.bitIndex%8)) != 0
}

func (c *cursor) read(index uint32) (uint64, error) {
	item, err := c.g.nodes.Get(c.ctx, index)
	if err != nil {
		return 0, err
	}
	defer item.Release()

	var v uint64
	for _, b := range item.Data[:c.g.info.RecordSize] {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

func (c *cursor) move(index uint32) error {
	v, err := c.read(index)
	if err != nil {
		return err
	}
	c.index = index
	c.current = v
	return nil
}

func (c *cursor) value(node uint64) uint64 { return c.g.info.Value.Extract(node) }

func (c *cursor) isLeaf(node uint64) bool { return c.value(node) >= c.g.count }

func (c *cursor) isZeroFlag(node uint64) bool { return c.g.info.ZeroFlag.Extract(node) != 0 }

func (c *cursor) isZeroLeaf(node uint64) bool { return c.isZeroFlag(node) && c.isLeaf(node) }

func (c *cursor) isOneLeaf(node uint64) bool { return !c.isZeroFlag(node) && c.isLeaf(node) }

func (c *cursor) zeroSkip(node uint64) uint8 {
	m := c.g.info.ZeroSkip
	if m.Mask == 0 {
		return 0
	}
	return uint8(m.Extract(node) + 1)
}

func (c *cursor) oneSkip(node uint64) uint8 {
	m := c.g.info.OneSkip
	if m.Mask == 0 {
		return 0
	}
	return uint8(m.Extract(node) + 1)
}

func (c *cursor) profileRef() uint32 {
	return uint32(c.value(c.current) - c.g.count)
}

func (c *cursor) selectZero() (bool, error) {
	if c.isZeroLeaf(c.current) {
		return true, nil
	}

	if c.skip == 0 {
		c.skip = c.zeroSkip(c.current)
	}

	c.skip--
	if c.skip == 0 {
		if err := c.move(c.index + 1); err != nil {
			return false, err
		}
	}

	c.bitIndex--
	return false, nil
}

func (c *cursor) selectOne() (bool, error) {
	if c.isOneLeaf(c.current) {
		return true, nil
	}

	// A zero leaf shares its node with the one branch, which is described
	// by the following node.
	zeroLeaf := c.isZeroLeaf(c.current)
	var next uint64
	if zeroLeaf {
		var err error
		if next, err = c.read(c.index + 1); err != nil {
			return false, err
		}
		if c.isOneLeaf(next) {
			c.index++
			c.current = next
			return true, nil
		}
	}

	if c.skip == 0 {
		if zeroLeaf {
			c.skip = c.oneSkip(next)
		} else {
			c.skip = c.oneSkip(c.current)
		}
	}

	c.skip--
	if c.skip == 0 {
		if zeroLeaf {
			c.index++
			c.current = next
		}
		target := c.value(c.current)
		if target > uint64(^uint32(0)) {
			return false, format.Corruptf("graph v%d component %d: node %d jumps to %d",
				c.g.info.Version, c.g.info.ComponentID, c.index, target)
		}
		if err := c.move(uint32(target)); err != nil {
			return false, err
		}
	}

	c.bitIndex--
	return false, nil
}
