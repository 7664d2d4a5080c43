// Package allocator implements the kernel's physical frame allocator.
//
// Every usable range of the boot memory map becomes a memoryRegion whose
// free/used state is tracked by an array of word-sized atomic bitmap
// chunks. The chunk array is bootstrapped into the region's own leading
// frames, so the allocator needs no other allocator to come up. All
// mutation happens through atomic bit operations; no path ever takes a
// lock, which keeps allocate and free safe to call from any core and from
// interrupt context.
//
// Access is gated by a capability Token issued exactly once by Init:
// holding a Token is proof that the allocator has been fully constructed.
package allocator

import (
	"sort"
	"sync/atomic"

	"erebos/kernel"
	"erebos/kernel/hal/bootinfo"
	"erebos/kernel/kfmt"
	"erebos/kernel/mem"
	"erebos/kernel/mem/pmm"
	"erebos/kernel/mem/vmm"
	ksync "erebos/kernel/sync"
)

// MaxMemoryRegionCount bounds the number of usable memory map entries the
// allocator will manage. Entries past the bound are dropped, shrinking the
// managed memory instead of failing boot.
const MaxMemoryRegionCount = 4096

var (
	// ErrOutOfMemory is returned by Allocate when no region can satisfy
	// the request.
	ErrOutOfMemory = &kernel.Error{Module: "pmm/allocator", Message: "out of physical memory"}

	// frameAllocator is the singleton constructed by Init.
	frameAllocator FrameAllocator

	initGate ksync.InitOnce
)

// Token proves that Init has completed. Allocate and Free require one, and
// the only way to obtain a valid Token is the Init call itself; the zero
// value fails every use.
type Token struct {
	issued bool
}

func (t Token) mustBeIssued() {
	if !t.issued || !initGate.Completed() {
		panic("allocator: frame allocator used before Init")
	}
}

// FrameAllocator fans allocation requests out across a bounded set of
// memory regions ordered by base address. The region list is populated
// once, before the allocator becomes reachable, and only bitmap contents
// and advisory counters mutate afterwards, so concurrent readers need no
// synchronization on the list itself.
type FrameAllocator struct {
	regionStore [MaxMemoryRegionCount]memoryRegion
	regions     []memoryRegion

	// cursor rotates the region where allocation scans start so that
	// concurrent callers spread out instead of all probing the first
	// region.
	cursor uint64
}

// fill populates the region list from the usable entries of the memory
// map. Entries that cannot host a region (a single frame or less) and
// entries past MaxMemoryRegionCount degrade the managed memory rather than
// aborting boot.
func (a *FrameAllocator) fill(memMap bootinfo.MemoryMap, im vmm.IdentityMapToken) {
	a.regions = a.regionStore[:0]
	memMap.Visit(bootinfo.KindUsable, func(e bootinfo.Entry) bool {
		if e.Length <= mem.PageSize {
			kfmt.Printf("[pmm/allocator] skipping usable range at 0x%16x: too small (%d bytes)\n",
				uintptr(e.Base), uint64(e.Length))
			return true
		}
		if len(a.regions) == MaxMemoryRegionCount {
			kfmt.Printf("[pmm/allocator] too many usable ranges; dropping the remainder\n")
			return false
		}
		a.regions = append(a.regions, newMemoryRegion(e.Base, e.Length, im))
		return true
	})
}

// allocate hands out frameCount consecutive frames from the first region
// that can satisfy them, starting at the region picked by the rotating
// cursor and wrapping around the whole list.
func (a *FrameAllocator) allocate(frameCount int) (pmm.PhysAddr, bool) {
	regionCount := len(a.regions)
	if regionCount == 0 {
		return pmm.InvalidAddr, false
	}

	start := int((atomic.AddUint64(&a.cursor, 1) - 1) % uint64(regionCount))
	for i := 0; i < regionCount; i++ {
		if addr, ok := a.regions[(start+i)%regionCount].allocate(frameCount); ok {
			return addr, true
		}
	}

	return pmm.InvalidAddr, false
}

// free returns frameCount frames starting at addr to the region that owns
// them, located by binary search over the base-ordered region list.
// Freeing an address no region owns is a caller bug and panics.
func (a *FrameAllocator) free(addr pmm.PhysAddr, frameCount int) {
	ix := sort.Search(len(a.regions), func(i int) bool {
		return addr < a.regions[i].end()
	})
	if ix == len(a.regions) || !a.regions[ix].owns(addr) {
		panic("allocator: free of an address no region owns")
	}

	a.regions[ix].free(addr, frameCount)
}

// Init constructs the global frame allocator from the boot memory map and
// returns the capability Token that every later Allocate and Free call
// must present. Exactly one call may ever succeed; re-initialization
// panics, as does an invalid memory map.
func Init(memMap bootinfo.MemoryMap, im vmm.IdentityMapToken) Token {
	if memMap.Empty() {
		panic("allocator: Init with an invalid memory map")
	}
	if !initGate.Begin() {
		panic("allocator: Init called twice")
	}

	frameAllocator.fill(memMap, im)
	kfmt.Printf("[pmm/allocator] managing %d region(s), %dKb usable\n",
		len(frameAllocator.regions), uint64(memMap.TotalUsable()/mem.Kb))
	initGate.Complete()

	return Token{issued: true}
}

// Allocate reserves frameCount consecutive physical frames and returns the
// address of the first one. Capacity exhaustion is an ordinary condition
// reported through ErrOutOfMemory, never a panic.
func Allocate(token Token, frameCount int) (pmm.PhysAddr, *kernel.Error) {
	token.mustBeIssued()

	addr, ok := frameAllocator.allocate(frameCount)
	if !ok {
		return pmm.InvalidAddr, ErrOutOfMemory
	}
	return addr, nil
}

// Free releases frameCount frames starting at addr. The frames must have
// been obtained through Allocate and not freed since.
func Free(token Token, addr pmm.PhysAddr, frameCount int) {
	token.mustBeIssued()
	frameAllocator.free(addr, frameCount)
}
