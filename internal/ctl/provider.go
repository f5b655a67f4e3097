package ctl

// Provider is the hierarchical named-control contract. Both the underlying
// child implementations and the remap proxy satisfy it, so proxies stack
// transparently.
//
// The model is single-caller, call-and-return: implementations may assume at
// most one goroutine is inside the provider at a time. Callers that share a
// provider across goroutines must serialize access themselves. Event reads
// block or return ErrWouldBlock according to the mode set with Nonblock;
// there is no cancellation beyond that, matching the underlying control API.
type Provider interface {
	// Close releases the provider. Further calls return ErrClosed.
	Close() error

	// Subscribe enables or disables event generation for this handle.
	Subscribe(enable bool) error

	// Nonblock switches ReadEvent between blocking and non-blocking mode.
	Nonblock(enable bool) error

	// List enumerates elements. The caller sets list.Offset and
	// list.Space; the provider fills list.IDs and sets list.Count to the
	// total available.
	List(list *ElemList) error

	// Info resolves info.ID and fills in the element descriptor.
	Info(info *ElemInfo) error

	// Read resolves value.ID and fills in the element's current value.
	Read(value *ElemValue) error

	// Write stores the value and reports whether anything changed.
	Write(value *ElemValue) (changed bool, err error)

	// Lock acquires the element lock for this handle's owner.
	Lock(id *ElemID) error

	// Unlock releases the element lock.
	Unlock(id *ElemID) error

	// TLVRead fetches the element's TLV byte blob by numid.
	TLVRead(numid uint32) ([]byte, error)

	// TLVWrite replaces the element's TLV byte blob by numid.
	TLVWrite(numid uint32, data []byte) error

	// TLVCommand issues a TLV command payload by numid.
	TLVCommand(numid uint32, data []byte) error

	// ReadEvent pulls one pending change notification. In non-blocking
	// mode it returns ErrWouldBlock when nothing is pending.
	ReadEvent() (*Event, error)

	// Notify returns a channel that receives a signal whenever an event
	// may be pending. It is a readiness hint for select loops, not a
	// guarantee that ReadEvent will succeed.
	Notify() <-chan struct{}
}
