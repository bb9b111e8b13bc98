// Package pool provides size-classed byte buffer pools for records read
// from a data file.
// Uses sync.Pool per power-of-two class so paged reads reuse memory.
package pool

import (
	"math/bits"
	"sync"
)

const (
	// MinClass is the smallest pooled buffer size.
	MinClass = 16
	// MaxClass is the largest pooled buffer size. Larger buffers are
	// allocated and dropped.
	MaxClass = 64 << 10

	minShift = 4
	maxShift = 16
)

var classes [maxShift - minShift + 1]sync.Pool

func classOf(n int) int {
	if n <= MinClass {
		return 0
	}
	return bits.Len(uint(n-1)) - minShift
}

// Get returns a buffer of length n. Its contents are undefined.
func Get(n int) *[]byte {
	if n > MaxClass {
		b := make([]byte, n)
		return &b
	}
	c := classOf(n)
	if v := classes[c].Get(); v != nil {
		bp := v.(*[]byte)
		*bp = (*bp)[:n]
		return bp
	}
	b := make([]byte, n, MinClass<<c)
	return &b
}

// Put returns a buffer obtained from Get.
func Put(bp *[]byte) {
	if bp == nil {
		return
	}
	c := cap(*bp)
	// Only exact class capacities go back; anything else came from the
	// oversize path.
	if c < MinClass || c > MaxClass || c&(c-1) != 0 {
		return
	}
	*bp = (*bp)[:0]
	classes[classOf(c)].Put(bp)
}
