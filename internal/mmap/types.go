package mmap

import "errors"

// AccessPattern is a paging hint for a mapped region.
type AccessPattern int

const (
	AccessDefault AccessPattern = iota
	AccessSequential
	// AccessRandom suits graph walks and profile reads.
	AccessRandom
	// AccessWillNeed asks for read-ahead of a region, such as a collection
	// about to be scanned at load.
	AccessWillNeed
)

var (
	ErrClosed        = errors.New("mmap: closed")
	ErrInvalidSize   = errors.New("mmap: file too large to map")
	ErrOutOfBounds   = errors.New("mmap: section outside mapping")
	ErrInvalidOffset = errors.New("mmap: negative offset")
)
