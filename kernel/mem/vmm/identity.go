// Package vmm provides the virtual memory facilities that the physical
// frame allocator depends on during bootstrap: registration of the boot
// loader's direct physical-memory mapping and address translation through
// it. Page table construction and walking live with the paging subsystem,
// not here.
package vmm

import (
	"erebos/kernel/mem/pmm"
	ksync "erebos/kernel/sync"
)

var (
	// identityMapBase is the virtual address at which physical address 0
	// is aliased. Written once by InitIdentityMap, read-only afterwards.
	identityMapBase uintptr

	identityMapGate ksync.InitOnce
)

// IdentityMapToken proves that the identity mapping has been registered.
// Valid tokens are only issued by InitIdentityMap; the zero value fails
// every use.
type IdentityMapToken struct {
	issued bool
}

func (t IdentityMapToken) mustBeIssued() {
	if !t.issued || !identityMapGate.Completed() {
		panic("vmm: identity map token used before InitIdentityMap")
	}
}

// InitIdentityMap records the virtual base address at which the boot loader
// aliases all physical memory and returns the token that unlocks ToVirtual.
// It may be called exactly once; any later call panics.
func InitIdentityMap(directMapBase uintptr) IdentityMapToken {
	if !identityMapGate.Begin() {
		panic("vmm: identity map initialized twice")
	}
	identityMapBase = directMapBase
	identityMapGate.Complete()

	return IdentityMapToken{issued: true}
}

// ToVirtual returns the virtual alias of addr inside the identity mapping.
func ToVirtual(addr pmm.PhysAddr, token IdentityMapToken) uintptr {
	token.mustBeIssued()
	return identityMapBase + uintptr(addr)
}
