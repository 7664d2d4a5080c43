//go:build amd64

package mem

const (
	// PageShift is equal to log2(PageSize). Shifting a physical address
	// right by PageShift yields the number of the frame that contains it.
	PageShift = 12

	// PageSize defines the system's page frame size in bytes.
	PageSize = Size(1 << PageShift)
)
