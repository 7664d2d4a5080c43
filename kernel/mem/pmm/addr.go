// Package pmm contains the types that describe physical memory locations.
package pmm

import (
	"math"

	"erebos/kernel/mem"
)

// PhysAddr is a byte offset into physical memory space.
type PhysAddr uintptr

// InvalidAddr is returned by frame allocation calls that cannot be
// satisfied.
const InvalidAddr = PhysAddr(math.MaxUint64)

// Valid returns true if this is a valid physical address.
func (a PhysAddr) Valid() bool {
	return a != InvalidAddr
}

// IsFrameAligned returns true if the address points at the first byte of a
// frame.
func (a PhysAddr) IsFrameAligned() bool {
	return a&(PhysAddr(mem.PageSize)-1) == 0
}

// ContainingFrame returns the frame that this address falls into.
func (a PhysAddr) ContainingFrame() Frame {
	return Frame(a >> mem.PageShift)
}

// Frame describes a physical memory page index.
type Frame uintptr

// InvalidFrame is returned by page allocators when they fail to reserve the
// requested frame.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the first byte of this frame.
func (f Frame) Address() PhysAddr {
	return PhysAddr(f << mem.PageShift)
}
