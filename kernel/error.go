// Package kernel defines the error type shared by all kernel subsystems.
package kernel

// Error describes a kernel error. Kernel errors are declared as global
// variables pointing to an Error value so that raising one never goes
// through the allocator; subsystems that run before memory management is
// online cannot use errors.New.
type Error struct {
	// Module is the subsystem where the error occurred.
	Module string

	// Message describes the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
