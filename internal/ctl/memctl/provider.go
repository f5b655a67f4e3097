package memctl

import (
	"fmt"
	"os"
	"sync"

	"github.com/nerrad567/ctlremap/internal/ctl"
)

// Logger defines the logging interface used by the Provider.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// element is one stored control with its descriptor and current value.
type element struct {
	id     ctl.ElemID
	typ    ctl.ElemType
	count  uint32
	access ctl.Access

	min, max, step int64
	items          []string

	ints  []int64
	bytes []byte
	tlv   []byte

	locked bool
	owner  int
}

// Provider is an in-memory ctl.Provider. Elements are held in an
// insertion-ordered table guarded by one mutex, so enumeration order is
// stable for the provider's lifetime. Unlike the proxy layers above it the
// Provider is safe for concurrent use; tests and the daemon's management
// surface may add or remove elements while a pump goroutine reads events.
type Provider struct {
	mu        sync.Mutex
	elements  []*element
	nextNumid uint32

	subscribed bool
	nonblock   bool
	closed     bool

	queue  []ctl.Event
	notify chan struct{}

	logger Logger
	pid    int
}

// New creates an empty in-memory provider.
func New() *Provider {
	return &Provider{
		nextNumid: 1,
		notify:    make(chan struct{}, 1),
		logger:    noopLogger{},
		pid:       os.Getpid(),
	}
}

// SetLogger sets the logger for the provider.
func (p *Provider) SetLogger(logger Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = logger
}

// Close releases the provider and wakes any blocked event reader.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ctl.ErrClosed
	}
	p.closed = true
	close(p.notify)
	return nil
}

// Subscribe enables or disables event generation. Disabling drops any
// pending events.
func (p *Provider) Subscribe(enable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ctl.ErrClosed
	}
	p.subscribed = enable
	if !enable {
		p.queue = nil
	}
	return nil
}

// Nonblock switches ReadEvent between blocking and non-blocking mode.
func (p *Provider) Nonblock(enable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ctl.ErrClosed
	}
	p.nonblock = enable
	return nil
}

// Notify returns the readiness hint channel. It receives a signal when an
// event is queued and is closed when the provider closes.
func (p *Provider) Notify() <-chan struct{} {
	return p.notify
}

// find resolves an identity against the table: numid lookup when the id
// carries one, full non-numeric match otherwise.
func (p *Provider) find(id ctl.ElemID) *element {
	if id.Numid != 0 {
		for _, e := range p.elements {
			if e.id.Numid == id.Numid {
				return e
			}
		}
		return nil
	}
	for _, e := range p.elements {
		if e.id.SameSet(id) {
			return e
		}
	}
	return nil
}

// pushEvent queues a notification when subscribed and signals readiness.
// Callers hold p.mu.
func (p *Provider) pushEvent(mask ctl.EventMask, id ctl.ElemID) {
	if !p.subscribed || p.closed {
		return
	}
	p.queue = append(p.queue, ctl.Event{Mask: mask, ID: id})
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// List enumerates elements with offset/window semantics.
func (p *Provider) List(list *ctl.ElemList) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ctl.ErrClosed
	}
	total := uint32(len(p.elements))
	list.Count = total
	list.IDs = list.IDs[:0]
	for i := list.Offset; i < total && uint32(len(list.IDs)) < list.Space; i++ {
		list.IDs = append(list.IDs, p.elements[i].id)
	}
	return nil
}

// Info fills in the element descriptor.
func (p *Provider) Info(info *ctl.ElemInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ctl.ErrClosed
	}
	e := p.find(info.ID)
	if e == nil {
		return ctl.ErrNotFound
	}
	*info = ctl.ElemInfo{
		ID:     e.id,
		Type:   e.typ,
		Access: e.access,
		Count:  e.count,
		Min:    e.min,
		Max:    e.max,
		Step:   e.step,
	}
	if e.items != nil {
		info.Items = make([]string, len(e.items))
		copy(info.Items, e.items)
	}
	if e.locked {
		info.Access |= ctl.AccessLock
		info.Owner = e.owner
	}
	return nil
}

// Read fills in the element's current value.
func (p *Provider) Read(value *ctl.ElemValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ctl.ErrClosed
	}
	e := p.find(value.ID)
	if e == nil {
		return ctl.ErrNotFound
	}
	if !e.access.Has(ctl.AccessRead) {
		return ctl.ErrPermission
	}
	value.ID = e.id
	value.Clear()
	if e.typ == ctl.TypeBytes || e.typ == ctl.TypeIEC958 {
		value.Bytes = make([]byte, len(e.bytes))
		copy(value.Bytes, e.bytes)
	} else {
		value.Ints = make([]int64, len(e.ints))
		copy(value.Ints, e.ints)
	}
	return nil
}

// Write stores the value and reports whether any channel changed. Channels
// beyond the provided payload keep their current value; numeric payloads are
// validated against the element's range before anything is stored.
func (p *Provider) Write(value *ctl.ElemValue) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ctl.ErrClosed
	}
	e := p.find(value.ID)
	if e == nil {
		return false, ctl.ErrNotFound
	}
	if !e.access.Has(ctl.AccessWrite) {
		return false, ctl.ErrPermission
	}
	if e.locked && e.owner != p.pid {
		return false, ctl.ErrPermission
	}

	changed := false
	switch e.typ {
	case ctl.TypeBytes, ctl.TypeIEC958:
		if value.Ints != nil {
			return false, fmt.Errorf("%w: %s expects a byte payload", ctl.ErrInvalidValue, e.typ)
		}
		n := len(value.Bytes)
		if n > len(e.bytes) {
			n = len(e.bytes)
		}
		for i := 0; i < n; i++ {
			if e.bytes[i] != value.Bytes[i] {
				e.bytes[i] = value.Bytes[i]
				changed = true
			}
		}
	default:
		if value.Bytes != nil {
			return false, fmt.Errorf("%w: %s expects numeric channels", ctl.ErrInvalidValue, e.typ)
		}
		n := len(value.Ints)
		if n > len(e.ints) {
			n = len(e.ints)
		}
		for i := 0; i < n; i++ {
			v := value.Ints[i]
			if err := e.validate(v); err != nil {
				return false, err
			}
			if e.typ == ctl.TypeBoolean && v != 0 {
				v = 1
			}
			if e.ints[i] != v {
				e.ints[i] = v
				changed = true
			}
		}
	}

	value.ID = e.id
	if changed {
		p.pushEvent(ctl.EventValue, e.id)
	}
	return changed, nil
}

// validate checks one numeric channel value against the element's bounds.
func (e *element) validate(v int64) error {
	switch e.typ {
	case ctl.TypeInteger, ctl.TypeInteger64:
		if v < e.min || v > e.max {
			return fmt.Errorf("%w: %d outside [%d, %d] for %s",
				ctl.ErrInvalidValue, v, e.min, e.max, e.id)
		}
	case ctl.TypeEnumerated:
		if v < 0 || v >= int64(len(e.items)) {
			return fmt.Errorf("%w: item %d outside enumeration for %s",
				ctl.ErrInvalidValue, v, e.id)
		}
	}
	return nil
}

// Lock acquires the element lock.
func (p *Provider) Lock(id *ctl.ElemID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ctl.ErrClosed
	}
	e := p.find(*id)
	if e == nil {
		return ctl.ErrNotFound
	}
	if e.locked {
		return ctl.ErrBusy
	}
	e.locked = true
	e.owner = p.pid
	*id = e.id
	p.pushEvent(ctl.EventInfo, e.id)
	return nil
}

// Unlock releases the element lock. Unlocking an element that is not locked
// is refused.
func (p *Provider) Unlock(id *ctl.ElemID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ctl.ErrClosed
	}
	e := p.find(*id)
	if e == nil {
		return ctl.ErrNotFound
	}
	if !e.locked || e.owner != p.pid {
		return ctl.ErrPermission
	}
	e.locked = false
	e.owner = 0
	*id = e.id
	p.pushEvent(ctl.EventInfo, e.id)
	return nil
}

// findNumid resolves a bare numid.
func (p *Provider) findNumid(numid uint32) *element {
	return p.find(ctl.ElemID{Numid: numid})
}

// TLVRead fetches the element's TLV blob.
func (p *Provider) TLVRead(numid uint32) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ctl.ErrClosed
	}
	e := p.findNumid(numid)
	if e == nil {
		return nil, ctl.ErrNotFound
	}
	if !e.access.Has(ctl.AccessTLVRead) {
		return nil, ctl.ErrNotSupported
	}
	data := make([]byte, len(e.tlv))
	copy(data, e.tlv)
	return data, nil
}

// TLVWrite replaces the element's TLV blob.
func (p *Provider) TLVWrite(numid uint32, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ctl.ErrClosed
	}
	e := p.findNumid(numid)
	if e == nil {
		return ctl.ErrNotFound
	}
	if !e.access.Has(ctl.AccessTLVWrite) {
		return ctl.ErrNotSupported
	}
	e.tlv = make([]byte, len(data))
	copy(e.tlv, data)
	p.pushEvent(ctl.EventTLV, e.id)
	return nil
}

// TLVCommand issues a TLV command payload. The in-memory provider treats
// commands as writes that do not replace the stored blob.
func (p *Provider) TLVCommand(numid uint32, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ctl.ErrClosed
	}
	e := p.findNumid(numid)
	if e == nil {
		return ctl.ErrNotFound
	}
	if !e.access.Has(ctl.AccessTLVCommand) {
		return ctl.ErrNotSupported
	}
	p.pushEvent(ctl.EventTLV, e.id)
	return nil
}

// ReadEvent pulls one pending notification. In blocking mode it waits until
// an event arrives or the provider closes.
func (p *Provider) ReadEvent() (*ctl.Event, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ctl.ErrClosed
		}
		if len(p.queue) > 0 {
			ev := p.queue[0]
			p.queue = p.queue[1:]
			if len(p.queue) > 0 {
				select {
				case p.notify <- struct{}{}:
				default:
				}
			}
			p.mu.Unlock()
			return &ev, nil
		}
		if p.nonblock {
			p.mu.Unlock()
			return nil, ctl.ErrWouldBlock
		}
		p.mu.Unlock()
		if _, ok := <-p.notify; !ok {
			return nil, ctl.ErrClosed
		}
	}
}
