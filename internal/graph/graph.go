package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/ipintel/internal/collection"
	"github.com/hupe1980/ipintel/internal/format"
)

// Graph is the compact trie of one (IP version, component) pair.
type Graph struct {
	info          format.GraphInfo
	nodes         collection.Collection
	count         uint64
	startBitIndex int
}

// New validates info and binds it to its node collection.
func New(info format.GraphInfo, nodes collection.Collection) (*Graph, error) {
	if info.RecordSize == 0 || info.RecordSize > 8 {
		return nil, format.Corruptf("graph v%d component %d: record size %d", info.Version, info.ComponentID, info.RecordSize)
	}
	start, err := StartBitIndex(info.Version)
	if err != nil {
		return nil, err
	}
	if nodes.Count() == 0 || nodes.Count() != info.Nodes.Count {
		return nil, format.Corruptf("graph v%d component %d: %d nodes for declared %d",
			info.Version, info.ComponentID, nodes.Count(), info.Nodes.Count)
	}
	return &Graph{
		info:          info,
		nodes:         nodes,
		count:         uint64(nodes.Count()),
		startBitIndex: start,
	}, nil
}

// StartBitIndex returns the first bit evaluated for an IP version.
func StartBitIndex(version uint8) (int, error) {
	switch version {
	case 4:
		return 31, nil
	case 6:
		return 127, nil
	default:
		return 0, format.Corruptf("graph ip version %d", version)
	}
}

// Info returns the graph's descriptor.
func (g *Graph) Info() format.GraphInfo { return g.info }

// Version returns the IP version (4 or 6) the graph evaluates.
func (g *Graph) Version() uint8 { return g.info.Version }

// ComponentID returns the id of the component the graph resolves.
func (g *Graph) ComponentID() uint8 { return g.info.ComponentID }

// StartBitIndex returns the first bit evaluated.
func (g *Graph) StartBitIndex() int { return g.startBitIndex }

// Nodes returns the node collection.
func (g *Graph) Nodes() collection.Collection { return g.nodes }

// Evaluate walks the graph for addr and returns the profile reference
// together with the number of bit decisions taken.
func (g *Graph) Evaluate(ctx context.Context, addr []byte) (uint32, int, error) {
	if len(addr)*8 != g.startBitIndex+1 {
		return 0, 0, fmt.Errorf("%w: %d byte address for ipv%d graph",
			format.ErrIncorrectIPAddressFormat, len(addr), g.info.Version)
	}

	c := cursor{ctx: ctx, g: g, addr: addr, bitIndex: g.startBitIndex}
	if err := c.move(0); err != nil {
		return 0, 0, err
	}

	steps := 0
	for {
		if c.bitIndex < 0 {
			return 0, steps, format.Corruptf("graph v%d component %d: no leaf after %d bits",
				g.info.Version, g.info.ComponentID, steps)
		}
		steps++

		var found bool
		var err error
		if c.bit() {
			found, err = c.selectOne()
		} else {
			found, err = c.selectZero()
		}
		if err != nil {
			return 0, steps, err
		}
		if found {
			return c.profileRef(), steps, nil
		}
	}
}

// Close releases the node collection.
func (g *Graph) Close() error { return g.nodes.Close() }

// Graphs is the set of graphs of a dataset.
type Graphs []*Graph

// Find returns the graph for an IP version and component, or nil.
func (gs Graphs) Find(version, componentID uint8) *Graph {
	for _, g := range gs {
		if g.info.Version == version && g.info.ComponentID == componentID {
			return g
		}
	}
	return nil
}

// Evaluate resolves addr against the graph of componentID for the address's
// IP version. ok is false when no graph matches.
func (gs Graphs) Evaluate(ctx context.Context, componentID uint8, addr []byte) (ref uint32, ok bool, err error) {
	var version uint8
	switch len(addr) {
	case 4:
		version = 4
	case 16:
		version = 6
	default:
		return 0, false, fmt.Errorf("%w: %d byte address", format.ErrIncorrectIPAddressFormat, len(addr))
	}

	g := gs.Find(version, componentID)
	if g == nil {
		return 0, false, nil
	}
	ref, _, err = g.Evaluate(ctx, addr)
	if err != nil {
		return 0, false, err
	}
	return ref, true, nil
}

// Close closes every graph. Nil entries are skipped.
func (gs Graphs) Close() error {
	var errs []error
	for _, g := range gs {
		if g == nil {
			continue
		}
		if err := g.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
