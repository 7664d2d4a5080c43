package kfmt

import "io"

// earlyBufSize bounds the amount of output retained from before an output
// sink is registered. It must be a power of two.
const earlyBufSize = 4096

// ringBuffer is a byte ring that overwrites its oldest contents once full.
// It buffers Printf output emitted before the console is available.
type ringBuffer struct {
	data [earlyBufSize]byte

	// head indexes the oldest byte; size counts the bytes stored.
	head, size int
}

// Write appends p to the ring, discarding the oldest bytes on overflow.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.data[(rb.head+rb.size)&(earlyBufSize-1)] = b
		if rb.size == earlyBufSize {
			rb.head = (rb.head + 1) & (earlyBufSize - 1)
		} else {
			rb.size++
		}
	}

	return len(p), nil
}

// Read drains up to len(p) bytes from the ring in FIFO order.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.size == 0 {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && rb.size > 0 {
		p[n] = rb.data[rb.head]
		rb.head = (rb.head + 1) & (earlyBufSize - 1)
		rb.size--
		n++
	}

	return n, nil
}
