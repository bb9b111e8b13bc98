// Package format defines the on-disk layout of an IP intelligence data file.
//
// A data file starts with a fixed 118 byte header followed by nine
// collections. Every multi-byte integer is little-endian except the
// component graph node records, which are decoded most-significant byte
// first by package graph.
//
//	+---------------------+
//	| version (2 bytes)   |
//	| published (4)       |
//	| next update (4)     |
//	| 9 x {off,len,count} |
//	+---------------------+
//	| strings             |
//	| components          |
//	| ...                 |
//	| profile offsets     |
//	+---------------------+
//
// The package also owns the sentinel errors shared by the lower layers.
package format
