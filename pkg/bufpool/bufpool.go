// Package bufpool provides sync.Pool-backed buffers for the scanning hot
// paths: string builders for rendering header blocks and byte slices for
// the streaming chunk reader. Pooling keeps per-record garbage flat on
// sessions with millions of exchanges.
package bufpool

import (
	"math/bits"
	"strings"
	"sync"
)

// maxPooledSize is the largest buffer kept in a pool. Larger buffers are
// left to the garbage collector so one oversized record cannot pin memory.
const maxPooledSize = 1 << 20 // 1 MiB

var builderPool = sync.Pool{
	New: func() interface{} {
		return new(strings.Builder)
	},
}

// GetString retrieves an empty strings.Builder from the pool.
// Callers should call PutString when done.
func GetString() *strings.Builder {
	sb := builderPool.Get().(*strings.Builder)
	sb.Reset()
	return sb
}

// PutString returns a strings.Builder to the pool. Nil builders and
// builders above the pooled size limit are dropped.
func PutString(sb *strings.Builder) {
	if sb == nil || sb.Cap() > maxPooledSize {
		return
	}
	sb.Reset()
	builderPool.Put(sb)
}

// Slice pools are tiered by power of two from 4 KiB to 1 MiB.
const (
	minSliceBits = 12
	maxSliceBits = 20
	sliceTiers   = maxSliceBits - minSliceBits + 1
)

var slicePools [sliceTiers]sync.Pool

func init() {
	for i := range slicePools {
		size := 1 << (minSliceBits + i)
		slicePools[i].New = func() interface{} {
			buf := make([]byte, size)
			return &buf
		}
	}
}

func tierFor(size int) int {
	if size <= 1<<minSliceBits {
		return 0
	}
	tier := bits.Len(uint(size-1)) - minSliceBits
	if tier >= sliceTiers {
		return -1
	}
	return tier
}

// GetSlice returns a byte slice of length size. Slices above 1 MiB are
// allocated directly. Callers should return the slice with PutSlice.
func GetSlice(size int) []byte {
	if size <= 0 {
		return nil
	}
	tier := tierFor(size)
	if tier < 0 {
		return make([]byte, size)
	}
	buf := slicePools[tier].Get().(*[]byte)
	return (*buf)[:size]
}

// PutSlice returns a slice obtained from GetSlice. Slices whose capacity
// does not match a tier exactly are dropped.
func PutSlice(buf []byte) {
	c := cap(buf)
	if c == 0 || c > maxPooledSize || c&(c-1) != 0 {
		return
	}
	tier := tierFor(c)
	if tier < 0 || 1<<(minSliceBits+tier) != c {
		return
	}
	buf = buf[:c]
	slicePools[tier].Put(&buf)
}
