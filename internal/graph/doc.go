// Package graph evaluates component graphs: compact binary tries that map
// an IP address to a profile reference for one network component.
//
// # Node records
//
// Each graph stores its nodes as fixed width records of RecordSize bytes
// (at most 8), decoded most significant byte first into a uint64. Four bit
// fields are extracted with {mask, shift} pairs:
//
//	zeroFlag  the zero branch of this node is a leaf
//	zeroSkip  address bits consumed before moving on a zero branch, minus one
//	oneSkip   address bits consumed before moving on a one branch, minus one
//	value     next node index, or a leaf when value >= node count
//
// A leaf's profile reference is value minus the node count; it indexes the
// profile offsets table.
//
// # Evaluation
//
// A cursor walks the address from its most significant bit (31 for IPv4,
// 127 for IPv6) downwards. A zero bit continues at the next sequential node
// once the zero skip is consumed; a one bit jumps to the node named by
// value. When a node's zero branch is a leaf, its one branch is described
// by the following node. Each bit is one decision, so evaluation ends
// within 32 or 128 decisions or fails with corrupt data.
package graph
