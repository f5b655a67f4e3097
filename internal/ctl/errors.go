package ctl

import "errors"

// Provider-level errors. Layers above propagate these unchanged so callers
// can classify failures with errors.Is no matter how many wrappers were
// added along the way.
var (
	// ErrNotFound indicates no element matches the given identity.
	ErrNotFound = errors.New("ctl: element not found")

	// ErrBusy indicates the element is locked by another owner.
	ErrBusy = errors.New("ctl: element busy")

	// ErrPermission indicates the operation is not permitted for this
	// element, e.g. writing a read-only control or unlocking a lock held
	// elsewhere.
	ErrPermission = errors.New("ctl: operation not permitted")

	// ErrNotSupported indicates the element does not support the
	// requested operation.
	ErrNotSupported = errors.New("ctl: operation not supported")

	// ErrWouldBlock is returned by non-blocking event reads when no event
	// is pending.
	ErrWouldBlock = errors.New("ctl: no event pending")

	// ErrClosed is returned once the provider has been closed.
	ErrClosed = errors.New("ctl: provider closed")

	// ErrInvalidID indicates a malformed textual element identity.
	ErrInvalidID = errors.New("ctl: invalid element identity")

	// ErrInvalidValue indicates a value payload that does not match the
	// element's type or channel count.
	ErrInvalidValue = errors.New("ctl: invalid element value")
)
