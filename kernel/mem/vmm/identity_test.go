package vmm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"erebos/kernel/mem/pmm"
	"erebos/kernel/mem/vmm"
)

// The identity map gate is process-wide and one-shot, so its whole
// lifecycle is exercised by a single test.
func TestIdentityMapLifecycle(t *testing.T) {
	assert.Panics(t, func() {
		vmm.ToVirtual(0, vmm.IdentityMapToken{})
	}, "translation must be rejected before initialization")

	const directMapBase = uintptr(0xffff_8000_0000_0000)
	token := vmm.InitIdentityMap(directMapBase)

	assert.Equal(t, directMapBase, vmm.ToVirtual(0, token))
	assert.Equal(t, directMapBase+0x1000, vmm.ToVirtual(pmm.PhysAddr(0x1000), token))

	assert.Panics(t, func() {
		vmm.InitIdentityMap(0)
	}, "re-initialization must abort")

	assert.Panics(t, func() {
		vmm.ToVirtual(0, vmm.IdentityMapToken{})
	}, "a forged zero token must be rejected")
}
