// Package bootinfo models the system memory map that the boot protocol
// glue hands to the kernel after translating the loader's entries into
// kernel types. The frame allocator consumes the usable entries; everything
// else in the map is informational.
package bootinfo

import (
	"erebos/kernel"
	"erebos/kernel/mem"
	"erebos/kernel/mem/pmm"
)

// EntryKind classifies a memory map entry.
type EntryKind uint8

const (
	// KindUsable marks memory that is genuinely free and may be handed
	// to the frame allocator.
	KindUsable EntryKind = iota

	// KindKernel marks memory occupied by the kernel image and boot
	// modules.
	KindKernel

	// KindReserved marks memory the kernel must never touch.
	KindReserved
)

// String returns a human readable description of the entry kind.
func (k EntryKind) String() string {
	switch k {
	case KindUsable:
		return "usable"
	case KindKernel:
		return "kernel"
	case KindReserved:
		return "reserved"
	}
	return "unknown"
}

// Entry describes one contiguous physical memory range reported by the boot
// loader.
type Entry struct {
	Base   pmm.PhysAddr
	Length mem.Size
	Kind   EntryKind
}

// End returns the first physical address past the entry.
func (e Entry) End() pmm.PhysAddr {
	return e.Base + pmm.PhysAddr(e.Length)
}

var (
	errMapEmpty    = &kernel.Error{Module: "bootinfo", Message: "memory map contains no entries"}
	errMapUnsorted = &kernel.Error{Module: "bootinfo", Message: "memory map entries not sorted by base address"}
	errMapOverlap  = &kernel.Error{Module: "bootinfo", Message: "usable memory map entries overlap"}
)

// MemoryMap is a validated, base-ordered list of memory map entries. The
// zero value is an invalid map; usable maps are produced by New.
type MemoryMap struct {
	entries []Entry
}

// New validates entries and wraps them into a MemoryMap. Entries must be
// sorted in ascending base order and usable entries must not overlap one
// another; the boot glue is expected to have merged or discarded anything
// that violates this before calling.
func New(entries []Entry) (MemoryMap, *kernel.Error) {
	if len(entries) == 0 {
		return MemoryMap{}, errMapEmpty
	}

	var lastUsableEnd pmm.PhysAddr
	for i, e := range entries {
		if i > 0 && e.Base < entries[i-1].Base {
			return MemoryMap{}, errMapUnsorted
		}
		if e.Kind != KindUsable {
			continue
		}
		if e.Base < lastUsableEnd {
			return MemoryMap{}, errMapOverlap
		}
		lastUsableEnd = e.End()
	}

	return MemoryMap{entries: entries}, nil
}

// Empty returns true for the zero MemoryMap.
func (m MemoryMap) Empty() bool {
	return len(m.entries) == 0
}

// Visit invokes fn for each entry of the given kind in base order until fn
// returns false.
func (m MemoryMap) Visit(kind EntryKind, fn func(Entry) bool) {
	for _, e := range m.entries {
		if e.Kind != kind {
			continue
		}
		if !fn(e) {
			return
		}
	}
}

// TotalUsable returns the total number of usable bytes in the map.
func (m MemoryMap) TotalUsable() mem.Size {
	var total mem.Size
	m.Visit(KindUsable, func(e Entry) bool {
		total += e.Length
		return true
	})
	return total
}
