package allocator

import "sync/atomic"

const (
	// chunkBits is the number of frames tracked by one bitmap chunk.
	chunkBits = 64

	// fullChunk is the bit pattern of a chunk with no free frames.
	fullChunk = ^uint64(0)
)

// bitmapChunk tracks the allocation state of chunkBits frames in a single
// machine word. A set bit marks a frame that is allocated or permanently
// reserved. The word is mutated exclusively through atomic operations, so
// any core, including one running an interrupt handler, may allocate and
// free concurrently without taking a lock.
type bitmapChunk struct {
	bits uint64
}

// bitRange returns a mask with the count lowest bits set.
func bitRange(count int) uint64 {
	if count >= chunkBits {
		return fullChunk
	}
	return (uint64(1) << uint(count)) - 1
}

// allocateSingle claims the first free frame of the chunk and returns its
// bit offset. Each probe is an atomic test-and-set, so two cores scanning
// the same chunk can never claim the same bit and no rollback is ever
// needed.
func (c *bitmapChunk) allocateSingle() (int, bool) {
	if atomic.LoadUint64(&c.bits) == fullChunk {
		return 0, false
	}

	for bit := 0; bit < chunkBits; bit++ {
		mask := uint64(1) << uint(bit)
		if atomic.OrUint64(&c.bits, mask)&mask == 0 {
			return bit, true
		}
	}

	return 0, false
}

// allocateMany claims count consecutive free frames and returns the bit
// offset of the run. Windows are tried in ascending offset order with at
// most two compare-and-swap attempts each: enough to absorb one racing
// update, without spinning indefinitely on a contended window. The scan is
// lock-free but not wait-free.
func (c *bitmapChunk) allocateMany(count int) (int, bool) {
	if count < 1 || count > chunkBits {
		panic("allocator: allocateMany count outside chunk")
	}

	mask := bitRange(count)
	current := atomic.LoadUint64(&c.bits)

	for shift := 0; shift <= chunkBits-count; shift++ {
		window := mask << uint(shift)
		for attempt := 0; attempt < 2; attempt++ {
			if current&window != 0 {
				// A required bit is taken; try the next window.
				break
			}
			if atomic.CompareAndSwapUint64(&c.bits, current, current|window) {
				return shift, true
			}
			current = atomic.LoadUint64(&c.bits)
		}
	}

	return 0, false
}

// free releases count frames starting at the given bit offset. Freeing a
// frame that is not allocated would corrupt the bitmap, so the prior state
// of every targeted bit is verified and a violation panics.
func (c *bitmapChunk) free(offset, count int) {
	if offset < 0 || count < 1 || offset+count > chunkBits {
		panic("allocator: free range outside chunk")
	}

	mask := bitRange(count) << uint(offset)
	if prev := atomic.AndUint64(&c.bits, ^mask); prev&mask != mask {
		panic("allocator: double free of physical frame")
	}
}
