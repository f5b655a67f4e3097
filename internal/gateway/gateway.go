package gateway

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/ctlremap/internal/ctl"
	"github.com/nerrad567/ctlremap/internal/history"
	"github.com/nerrad567/ctlremap/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the gateway.
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

// Broadcaster pushes real-time messages to connected WebSocket clients.
// Satisfied by *api.Hub.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Publisher is the slice of the MQTT client the gateway uses to mirror
// element state. This allows mocking in tests.
type Publisher interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// PublishRetained sends a retained message; an empty payload clears it.
	PublishRetained(topic string, payload []byte) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Telemetry mirrors element changes into the time-series store.
// Satisfied by *influxdb.Client.
type Telemetry interface {
	// WriteElementValue records the numeric channel values of an element.
	WriteElementValue(element string, numid uint32, values []int64)

	// WriteElementEvent records a namespace event occurrence.
	WriteElementEvent(element string, kind string)
}

// WebSocket broadcast channels emitted by the event pump.
const (
	ChannelValueChanged   = "control.value_changed"
	ChannelInfoChanged    = "control.info_changed"
	ChannelElementAdded   = "control.element_added"
	ChannelElementRemoved = "control.element_removed"
	ChannelTLVChanged     = "control.tlv_changed"
	ChannelRulesReloaded  = "system.rules_reloaded"
)

const (
	// eventPoll bounds how long a missed notify signal can delay the pump.
	eventPoll = 500 * time.Millisecond

	// pendingTTL is how long a write waits to be matched against its event
	// before the attribution entry is dropped. Writes that change nothing
	// produce no event, so entries must expire.
	pendingTTL = 2 * time.Second

	// pruneEvery is the interval between history retention sweeps.
	pruneEvery = time.Hour
)

// pendingWrite remembers who issued an in-flight write so the resulting
// event can be attributed to them.
type pendingWrite struct {
	source string
	at     time.Time
}

// Options holds configuration for creating a Gateway.
type Options struct {
	// Provider is the control provider stack. Required.
	Provider ctl.Provider

	// Hub is optional; if nil, no WebSocket broadcasts are sent.
	Hub Broadcaster

	// MQTT is optional; if nil, the retained mirror and event stream are
	// skipped.
	MQTT Publisher

	// Topics builds the MQTT topic names. The zero value uses the default
	// base topic.
	Topics mqtt.Topics

	// QoS is the quality of service for non-retained event publishes.
	QoS byte

	// History is optional; if nil, nothing is recorded.
	History history.Repository

	// Retention bounds how long history rows are kept. Zero disables
	// pruning.
	Retention time.Duration

	// Telemetry is optional; if nil, no points are written.
	Telemetry Telemetry

	// Logger is optional structured logger.
	Logger Logger
}

// Gateway serializes access to the provider stack and pumps its events to
// the daemon's consumer surfaces.
//
// All public methods are thread-safe.
type Gateway struct {
	mu       sync.Mutex // serializes every provider call
	provider ctl.Provider

	hub       Broadcaster
	mqtt      Publisher
	topics    mqtt.Topics
	qos       byte
	history   history.Repository
	retention time.Duration
	telemetry Telemetry

	pendingMu sync.Mutex
	pending   map[uint32]pendingWrite

	publishedMu sync.Mutex
	published   map[uint32]bool // numids with retained topics on the broker

	events    atomic.Uint64
	writes    atomic.Uint64
	recorded  atomic.Uint64
	swaps     atomic.Uint64
	lastEvent atomic.Int64 // unix nanos, 0 = never

	logger Logger
}

// New creates a gateway over the given provider stack.
// Call Run to start the event pump.
func New(opts Options) (*Gateway, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Gateway{
		provider:  opts.Provider,
		hub:       opts.Hub,
		mqtt:      opts.MQTT,
		topics:    opts.Topics,
		qos:       opts.QoS,
		history:   opts.History,
		retention: opts.Retention,
		telemetry: opts.Telemetry,
		pending:   make(map[uint32]pendingWrite),
		published: make(map[uint32]bool),
		logger:    logger,
	}, nil
}

// SetLogger sets the logger for the gateway.
func (g *Gateway) SetLogger(logger Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// Swap replaces the provider stack, typically after a rules reload built a
// new proxy over the same child. The old proxy is not closed here: closing
// it would close the shared child handle.
func (g *Gateway) Swap(next ctl.Provider) error {
	if next == nil {
		return fmt.Errorf("swap: provider is required")
	}
	g.mu.Lock()
	g.provider = next
	err := next.Subscribe(true)
	if err == nil {
		err = next.Nonblock(true)
	}
	g.mu.Unlock()
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	g.swaps.Add(1)
	g.refreshRetained()
	count := -1
	if ids, err := g.listAll(); err == nil {
		count = len(ids)
	}
	g.broadcast(ChannelRulesReloaded, map[string]any{"elements": count})
	g.logger.Info("provider stack swapped", "elements", count)
	return nil
}

// Elements lists one page of the element namespace. It returns the page and
// the total number of elements available.
func (g *Gateway) Elements(offset, limit uint32) ([]ctl.ElemID, uint32, error) {
	list := ctl.ElemList{Offset: offset, Space: limit}
	g.mu.Lock()
	err := g.provider.List(&list)
	g.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}
	return list.IDs, list.Count, nil
}

// Describe returns the descriptor for the element with the given numid.
func (g *Gateway) Describe(numid uint32) (*ctl.ElemInfo, error) {
	info := &ctl.ElemInfo{ID: ctl.ElemID{Numid: numid}}
	g.mu.Lock()
	err := g.provider.Info(info)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Lookup resolves a textual element identity and returns its descriptor.
func (g *Gateway) Lookup(id string) (*ctl.ElemInfo, error) {
	elemID, err := ctl.ParseElemID(id)
	if err != nil {
		return nil, err
	}
	info := &ctl.ElemInfo{ID: elemID}
	g.mu.Lock()
	err = g.provider.Info(info)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return info, nil
}

// ReadValue returns the current value of the element with the given numid.
func (g *Gateway) ReadValue(numid uint32) (*ctl.ElemValue, error) {
	value := &ctl.ElemValue{ID: ctl.ElemID{Numid: numid}}
	g.mu.Lock()
	err := g.provider.Read(value)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return value, nil
}

// WriteRequest describes one element write. The target is the numid when
// non-zero, otherwise the textual identity. Exactly one of Values and Bytes
// should carry the payload, matching the element type.
type WriteRequest struct {
	Numid  uint32
	ID     string
	Values []int64
	Bytes  []byte
	Source string
}

// WriteValue writes an element value and returns the settled state read back
// after the write, so callers observe what the namespace actually holds
// rather than what they sent.
func (g *Gateway) WriteValue(req WriteRequest) (*ctl.ElemValue, bool, error) {
	value := &ctl.ElemValue{
		Ints:  req.Values,
		Bytes: req.Bytes,
	}
	switch {
	case req.Numid != 0:
		value.ID.Numid = req.Numid
	case req.ID != "":
		id, err := ctl.ParseElemID(req.ID)
		if err != nil {
			return nil, false, err
		}
		value.ID = id
	default:
		return nil, false, fmt.Errorf("write target: %w", ctl.ErrInvalidID)
	}
	if len(req.Values) == 0 && len(req.Bytes) == 0 {
		return nil, false, fmt.Errorf("write payload: %w", ctl.ErrInvalidValue)
	}

	g.mu.Lock()
	changed, err := g.provider.Write(value)
	if err != nil {
		g.mu.Unlock()
		return nil, false, err
	}
	settled := &ctl.ElemValue{ID: value.ID}
	readErr := g.provider.Read(settled)
	g.mu.Unlock()

	// Stamp attribution before the pump drains the queued events. Writes
	// that changed nothing emit no event; the entry then ages out.
	if req.Source != "" {
		g.pendingMu.Lock()
		g.pending[settled.ID.Numid] = pendingWrite{source: req.Source, at: time.Now()}
		g.pendingMu.Unlock()
	}
	g.writes.Add(1)

	if readErr != nil {
		return nil, changed, readErr
	}
	return settled, changed, nil
}

// Lock acquires the element lock on behalf of the daemon's handle.
func (g *Gateway) Lock(numid uint32) error {
	id := ctl.ElemID{Numid: numid}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.provider.Lock(&id)
}

// Unlock releases the element lock.
func (g *Gateway) Unlock(numid uint32) error {
	id := ctl.ElemID{Numid: numid}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.provider.Unlock(&id)
}

// TLVRead fetches the element's TLV blob.
func (g *Gateway) TLVRead(numid uint32) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.provider.TLVRead(numid)
}

// TLVWrite replaces the element's TLV blob.
func (g *Gateway) TLVWrite(numid uint32, data []byte, source string) error {
	g.mu.Lock()
	err := g.provider.TLVWrite(numid, data)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	if source != "" {
		g.pendingMu.Lock()
		g.pending[numid] = pendingWrite{source: source, at: time.Now()}
		g.pendingMu.Unlock()
	}
	g.writes.Add(1)
	return nil
}

// TLVCommand issues a TLV command payload.
func (g *Gateway) TLVCommand(numid uint32, data []byte, source string) error {
	g.mu.Lock()
	err := g.provider.TLVCommand(numid, data)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	if source != "" {
		g.pendingMu.Lock()
		g.pending[numid] = pendingWrite{source: source, at: time.Now()}
		g.pendingMu.Unlock()
	}
	g.writes.Add(1)
	return nil
}

// setPayload is the inbound MQTT write payload, mirroring the REST body.
type setPayload struct {
	Values []int64 `json:"values"`
	Bytes  string  `json:"bytes"`
}

// HandleElementSet is the MQTT message handler for element set topics. The
// payload is either {"values":[...]}, {"bytes":"<hex>"}, or a bare JSON
// array of channel values.
func (g *Gateway) HandleElementSet(topic string, payload []byte) error {
	numid, ok := g.topics.ParseElementSet(topic)
	if !ok {
		return fmt.Errorf("unrecognized set topic %q", topic)
	}
	req := WriteRequest{Numid: numid, Source: history.SourceMQTT}

	var body setPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		var values []int64
		if err2 := json.Unmarshal(payload, &values); err2 != nil {
			return fmt.Errorf("parse set payload: %w", err)
		}
		req.Values = values
	} else {
		req.Values = body.Values
		if body.Bytes != "" {
			data, err := hex.DecodeString(body.Bytes)
			if err != nil {
				return fmt.Errorf("parse set bytes: %w", err)
			}
			req.Bytes = data
		}
	}

	if _, _, err := g.WriteValue(req); err != nil {
		return fmt.Errorf("set numid %d: %w", numid, err)
	}
	return nil
}

// Stats is a snapshot of gateway counters for the metrics endpoint.
type Stats struct {
	Elements     int       `json:"elements"`
	EventsSeen   uint64    `json:"events_seen"`
	WritesServed uint64    `json:"writes_served"`
	HistoryRows  uint64    `json:"history_rows"`
	RulesSwaps   uint64    `json:"rules_swaps"`
	LastEventAt  time.Time `json:"last_event_at,omitempty"`
}

// Stats returns current gateway counters.
func (g *Gateway) Stats() Stats {
	s := Stats{
		EventsSeen:   g.events.Load(),
		WritesServed: g.writes.Load(),
		HistoryRows:  g.recorded.Load(),
		RulesSwaps:   g.swaps.Load(),
	}
	if ns := g.lastEvent.Load(); ns != 0 {
		s.LastEventAt = time.Unix(0, ns).UTC()
	}
	var list ctl.ElemList
	g.mu.Lock()
	if err := g.provider.List(&list); err == nil {
		s.Elements = int(list.Count)
	}
	g.mu.Unlock()
	return s
}

// listAll returns every element identity in the namespace.
func (g *Gateway) listAll() ([]ctl.ElemID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var list ctl.ElemList
	if err := g.provider.List(&list); err != nil {
		return nil, err
	}
	if list.Count == 0 {
		return nil, nil
	}
	list.Space = list.Count
	if err := g.provider.List(&list); err != nil {
		return nil, err
	}
	return list.IDs, nil
}
