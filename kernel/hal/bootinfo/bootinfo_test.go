package bootinfo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erebos/kernel/hal/bootinfo"
	"erebos/kernel/mem"
	"erebos/kernel/mem/pmm"
)

func entry(base uintptr, length mem.Size, kind bootinfo.EntryKind) bootinfo.Entry {
	return bootinfo.Entry{Base: pmm.PhysAddr(base), Length: length, Kind: kind}
}

func TestNewValidatesEntries(t *testing.T) {
	t.Run("empty map", func(t *testing.T) {
		_, err := bootinfo.New(nil)
		require.NotNil(t, err)
		assert.Equal(t, "bootinfo", err.Module)
	})

	t.Run("unsorted entries", func(t *testing.T) {
		_, err := bootinfo.New([]bootinfo.Entry{
			entry(0x100000, 64*mem.Kb, bootinfo.KindUsable),
			entry(0x1000, 64*mem.Kb, bootinfo.KindReserved),
		})
		require.NotNil(t, err)
	})

	t.Run("overlapping usable entries", func(t *testing.T) {
		_, err := bootinfo.New([]bootinfo.Entry{
			entry(0x1000, 64*mem.Kb, bootinfo.KindUsable),
			entry(0x2000, 64*mem.Kb, bootinfo.KindUsable),
		})
		require.NotNil(t, err)
	})

	t.Run("non-usable entries may overlap", func(t *testing.T) {
		m, err := bootinfo.New([]bootinfo.Entry{
			entry(0x1000, 64*mem.Kb, bootinfo.KindReserved),
			entry(0x2000, 64*mem.Kb, bootinfo.KindKernel),
			entry(0x12000, 64*mem.Kb, bootinfo.KindUsable),
		})
		require.Nil(t, err)
		assert.False(t, m.Empty())
	})

	t.Run("adjacent usable entries", func(t *testing.T) {
		_, err := bootinfo.New([]bootinfo.Entry{
			entry(0x1000, 4*mem.Kb, bootinfo.KindUsable),
			entry(0x2000, 4*mem.Kb, bootinfo.KindUsable),
		})
		assert.Nil(t, err)
	})
}

func TestVisitFiltersByKindInBaseOrder(t *testing.T) {
	m, err := bootinfo.New([]bootinfo.Entry{
		entry(0x1000, 4*mem.Kb, bootinfo.KindUsable),
		entry(0x2000, 4*mem.Kb, bootinfo.KindKernel),
		entry(0x3000, 4*mem.Kb, bootinfo.KindUsable),
		entry(0x4000, 4*mem.Kb, bootinfo.KindReserved),
	})
	require.Nil(t, err)

	var bases []pmm.PhysAddr
	m.Visit(bootinfo.KindUsable, func(e bootinfo.Entry) bool {
		bases = append(bases, e.Base)
		return true
	})
	assert.Equal(t, []pmm.PhysAddr{0x1000, 0x3000}, bases)

	// An early return stops the walk.
	visits := 0
	m.Visit(bootinfo.KindUsable, func(bootinfo.Entry) bool {
		visits++
		return false
	})
	assert.Equal(t, 1, visits)
}

func TestTotalUsable(t *testing.T) {
	m, err := bootinfo.New([]bootinfo.Entry{
		entry(0x1000, 64*mem.Kb, bootinfo.KindUsable),
		entry(0x100000, 1*mem.Mb, bootinfo.KindKernel),
		entry(0x200000, 2*mem.Mb, bootinfo.KindUsable),
	})
	require.Nil(t, err)

	assert.Equal(t, 64*mem.Kb+2*mem.Mb, m.TotalUsable())
}

func TestEntryEnd(t *testing.T) {
	e := entry(0x1000, 8*mem.Kb, bootinfo.KindUsable)
	assert.Equal(t, pmm.PhysAddr(0x3000), e.End())
}

func TestEntryKindString(t *testing.T) {
	assert.Equal(t, "usable", bootinfo.KindUsable.String())
	assert.Equal(t, "kernel", bootinfo.KindKernel.String())
	assert.Equal(t, "reserved", bootinfo.KindReserved.String())
	assert.Equal(t, "unknown", bootinfo.EntryKind(42).String())
}
