package allocator

import (
	"os"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"erebos/kernel/mem"
	"erebos/kernel/mem/pmm"
	"erebos/kernel/mem/vmm"
)

// The test arena stands in for the physical memory the boot loader hands
// over: a page aligned anonymous mapping whose start address is registered
// as the identity map base. Physical address 0 is the first byte of the
// arena, so regions carved out of it are genuinely backed and the bitmap
// bootstrap really writes through the identity mapped alias.
var (
	testArena   []byte
	identityTok vmm.IdentityMapToken

	// arenaNext is the bump cursor for arenaAlloc. Regions are never
	// destroyed, so arena ranges are never reused either.
	arenaNext uintptr
)

const testArenaSize = 96 << 20

func TestMain(m *testing.M) {
	arena, err := unix.Mmap(-1, 0, testArenaSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(err)
	}
	testArena = arena
	identityTok = vmm.InitIdentityMap(uintptr(unsafe.Pointer(&arena[0])))

	code := m.Run()
	unix.Munmap(arena)
	os.Exit(code)
}

// arenaAlloc carves size bytes of backing memory out of the test arena and
// returns their physical address. size must be frame aligned.
func arenaAlloc(t *testing.T, size mem.Size) pmm.PhysAddr {
	t.Helper()

	base := arenaNext
	arenaNext += uintptr(size)
	if arenaNext > uintptr(len(testArena)) {
		t.Fatalf("test arena exhausted: need %d more bytes", arenaNext-uintptr(len(testArena)))
	}

	return pmm.PhysAddr(base)
}

// newArenaRegion constructs a self-hosted region over fresh arena memory.
func newArenaRegion(t *testing.T, frames int) memoryRegion {
	t.Helper()

	size := mem.Size(frames) * mem.PageSize
	return newMemoryRegion(arenaAlloc(t, size), size, identityTok)
}
