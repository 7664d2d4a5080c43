// Package sync provides synchronization primitives for kernel subsystems
// that cannot rely on a scheduler being available.
package sync

import "sync/atomic"

const (
	onceIdle uint32 = iota
	onceRunning
	onceDone
)

// InitOnce is a one-shot gate guarding a single initialization step that
// must be performed by exactly one core. The winner of Begin performs the
// step and publishes it with Complete; everyone else either backs off or
// spin-waits until the gate reports completion.
type InitOnce struct {
	state uint32
}

// Begin attempts to claim the gate. Exactly one caller ever receives true.
func (o *InitOnce) Begin() bool {
	return atomic.CompareAndSwapUint32(&o.state, onceIdle, onceRunning)
}

// Complete publishes the initialization performed by the caller that won
// Begin. Calling Complete without holding the gate is a bug.
func (o *InitOnce) Complete() {
	if !atomic.CompareAndSwapUint32(&o.state, onceRunning, onceDone) {
		panic("sync: InitOnce.Complete without a matching Begin")
	}
}

// Completed returns true once the winner has called Complete.
func (o *InitOnce) Completed() bool {
	return atomic.LoadUint32(&o.state) == onceDone
}

// Wait spins until the gate reports completion.
func (o *InitOnce) Wait() {
	for !o.Completed() {
	}
}
