package allocator

import (
	"sync/atomic"
	"unsafe"

	"erebos/kernel/mem"
	"erebos/kernel/mem/pmm"
	"erebos/kernel/mem/vmm"
)

const (
	// frameSize is the allocation granularity of the physical memory
	// manager.
	frameSize = uintptr(mem.PageSize)

	// chunkSpan is the number of bytes of physical memory covered by one
	// bitmap chunk.
	chunkSpan = chunkBits * frameSize

	// minFreeFrames is the headroom a region must retain to accept new
	// allocations. Scanning an almost-full region under contention costs
	// more than moving on to the next region.
	minFreeFrames = 4
)

// memoryRegion tracks frame allocations inside one contiguous physical
// range. The chunk array backing the bitmap lives inside the region's own
// leading frames; those frames, plus any tail frames that round the region
// up to a whole number of chunks, are reserved at construction and never
// handed out. framesUsed is advisory: only the bitmap bits are
// authoritative for whether a frame is free.
type memoryRegion struct {
	base       pmm.PhysAddr
	framesUsed uint64
	chunks     []bitmapChunk
}

// newMemoryRegion builds the bitmap for the range [base, base+size) inside
// the range itself, reached through the identity mapped alias. No general
// allocator exists when regions are constructed, so this is the one place
// in the kernel that reinterprets raw physical memory. base and size must
// be frame aligned and the range must span more than one frame; violations
// panic because a malformed region cannot be described safely.
func newMemoryRegion(base pmm.PhysAddr, size mem.Size, im vmm.IdentityMapToken) memoryRegion {
	if !base.IsFrameAligned() {
		panic("allocator: region base not frame aligned")
	}
	if size%mem.PageSize != 0 {
		panic("allocator: region size not frame aligned")
	}
	if size <= mem.PageSize {
		panic("allocator: region must span more than one frame")
	}

	sizeFrames := int(size >> mem.PageShift)
	chunkCount := (sizeFrames + chunkBits - 1) / chunkBits

	// Whole frames swallowed by the chunk array itself (prefix) and bits
	// covering the gap up to a whole number of chunks (suffix).
	bitmapBytes := uintptr(chunkCount) * unsafe.Sizeof(bitmapChunk{})
	prefixFrames := int((bitmapBytes + frameSize - 1) / frameSize)
	suffixFrames := chunkCount*chunkBits - sizeFrames

	if prefixFrames >= sizeFrames {
		panic("allocator: region too small to host its own bitmap")
	}

	chunks := unsafe.Slice((*bitmapChunk)(unsafe.Pointer(vmm.ToVirtual(base, im))), chunkCount)

	// Mark the prefix frames allocated, walking chunk by chunk since the
	// reservation may span several chunks.
	remaining := prefixFrames
	for i := range chunks {
		reservedHere := remaining
		if reservedHere > chunkBits {
			reservedHere = chunkBits
		}
		chunks[i] = bitmapChunk{bits: bitRange(reservedHere)}
		remaining -= reservedHere
	}

	if suffixFrames > 0 {
		suffixMask := bitRange(suffixFrames) << uint(chunkBits-suffixFrames)
		last := &chunks[chunkCount-1]
		// The prefix reservation must never reach into the tail padding.
		if last.bits&suffixMask != 0 {
			panic("allocator: bitmap frames overlap region tail padding")
		}
		last.bits |= suffixMask
	}

	return memoryRegion{
		base:       base,
		framesUsed: uint64(prefixFrames + suffixFrames),
		chunks:     chunks,
	}
}

// frameCount returns the number of frames tracked by the bitmap, including
// reserved ones.
func (r *memoryRegion) frameCount() int {
	return len(r.chunks) * chunkBits
}

// framesAvailable returns the number of frames that can still be handed
// out. The value is advisory and may be stale by the time it is used.
func (r *memoryRegion) framesAvailable() int {
	return r.frameCount() - int(atomic.LoadUint64(&r.framesUsed))
}

// end returns the first physical address past the region's bitmap coverage.
func (r *memoryRegion) end() pmm.PhysAddr {
	return r.base + pmm.PhysAddr(uintptr(r.frameCount())*frameSize)
}

// owns reports whether addr falls inside this region.
func (r *memoryRegion) owns(addr pmm.PhysAddr) bool {
	return addr >= r.base && addr < r.end()
}

// allocate claims frameCount consecutive frames and returns the physical
// address of the first one. Runs never cross a chunk boundary, so requests
// wider than one chunk are refused outright, and nearly full regions refuse
// new requests so callers probe elsewhere instead of racing for the last
// few frames.
func (r *memoryRegion) allocate(frameCount int) (pmm.PhysAddr, bool) {
	if frameCount < 1 {
		panic("allocator: allocate with non-positive frame count")
	}
	if frameCount > chunkBits {
		return pmm.InvalidAddr, false
	}
	if r.framesAvailable() < minFreeFrames {
		return pmm.InvalidAddr, false
	}

	for i := range r.chunks {
		var (
			offset int
			ok     bool
		)
		if frameCount == 1 {
			offset, ok = r.chunks[i].allocateSingle()
		} else {
			offset, ok = r.chunks[i].allocateMany(frameCount)
		}
		if !ok {
			continue
		}

		atomic.AddUint64(&r.framesUsed, uint64(frameCount))
		return r.base + pmm.PhysAddr(uintptr(i)*chunkSpan+uintptr(offset)*frameSize), true
	}

	return pmm.InvalidAddr, false
}

// free releases frameCount frames starting at addr. addr must be a frame
// aligned address inside this region that was previously returned by
// allocate and not freed since.
func (r *memoryRegion) free(addr pmm.PhysAddr, frameCount int) {
	if !r.owns(addr) {
		panic("allocator: free of an address outside the region")
	}
	if !addr.IsFrameAligned() {
		panic("allocator: free of an unaligned address")
	}

	frameIx := int(uintptr(addr-r.base) / frameSize)
	r.chunks[frameIx/chunkBits].free(frameIx%chunkBits, frameCount)
	atomic.AddUint64(&r.framesUsed, ^uint64(uint(frameCount)-1))
}
