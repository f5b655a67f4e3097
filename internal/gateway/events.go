package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/nerrad567/ctlremap/internal/ctl"
	"github.com/nerrad567/ctlremap/internal/history"
)

// valuePayload is the wire shape for value broadcasts and the retained
// value topic.
type valuePayload struct {
	Numid  uint32  `json:"numid"`
	ID     string  `json:"id"`
	Values []int64 `json:"values,omitempty"`
	Bytes  string  `json:"bytes,omitempty"`
	Source string  `json:"source,omitempty"`
}

// eventPayload is the wire shape for the non-retained event stream and the
// add/remove/tlv broadcasts.
type eventPayload struct {
	Numid  uint32 `json:"numid"`
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Source string `json:"source,omitempty"`
}

// elemKey returns the numid-less textual identity used as the stable element
// key for history and telemetry. Numids are re-minted on rules reloads, the
// textual identity is not.
func elemKey(id ctl.ElemID) string {
	id.Numid = 0
	return id.String()
}

// Run subscribes to provider events and pumps them until the context is
// cancelled. It publishes the initial retained snapshot before the first
// drain so MQTT consumers start from a complete mirror.
func (g *Gateway) Run(ctx context.Context) error {
	g.mu.Lock()
	err := g.provider.Subscribe(true)
	if err == nil {
		err = g.provider.Nonblock(true)
	}
	g.mu.Unlock()
	if err != nil {
		return err
	}

	g.refreshRetained()

	ticker := time.NewTicker(eventPoll)
	defer ticker.Stop()

	var prune <-chan time.Time
	if g.history != nil && g.retention > 0 {
		pruneTicker := time.NewTicker(pruneEvery)
		defer pruneTicker.Stop()
		prune = pruneTicker.C
	}

	g.logger.Info("event pump started")
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("event pump stopped")
			return nil
		case <-g.notify():
			g.drainEvents(ctx)
		case <-ticker.C:
			g.drainEvents(ctx)
		case <-prune:
			g.pruneHistory(ctx)
		}
	}
}

// notify returns the current provider's readiness channel. It is re-read
// every loop iteration so a Swap takes effect immediately.
func (g *Gateway) notify() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.provider.Notify()
}

// drainEvents empties the provider's event queue in one batch, deduplicates
// per element by OR-ing masks, then handles each element once against its
// settled state.
func (g *Gateway) drainEvents(ctx context.Context) {
	order := make([]uint32, 0, 8)
	batch := make(map[uint32]*ctl.Event)

	g.mu.Lock()
	for {
		ev, err := g.provider.ReadEvent()
		if err != nil {
			if !errors.Is(err, ctl.ErrWouldBlock) && !errors.Is(err, ctl.ErrClosed) {
				g.logger.Warn("event read failed", "error", err)
			}
			break
		}
		g.events.Add(1)
		if cur, ok := batch[ev.ID.Numid]; ok {
			cur.Mask |= ev.Mask
		} else {
			batch[ev.ID.Numid] = ev
			order = append(order, ev.ID.Numid)
		}
	}
	g.mu.Unlock()

	if len(order) == 0 {
		return
	}
	g.lastEvent.Store(time.Now().UnixNano())

	sources := g.assignSources(batch)
	for _, numid := range order {
		g.dispatch(ctx, batch[numid], sources[numid])
	}
}

// assignSources attributes each batch element to a change source. An element
// matching a pending write gets that write's source; the rest of the batch is
// sync propagation when a write is in flight, otherwise a card-side change.
func (g *Gateway) assignSources(batch map[uint32]*ctl.Event) map[uint32]string {
	sources := make(map[uint32]string, len(batch))
	now := time.Now()

	g.pendingMu.Lock()
	defer g.pendingMu.Unlock()

	direct := false
	for numid := range batch {
		if pw, ok := g.pending[numid]; ok {
			delete(g.pending, numid)
			sources[numid] = pw.source
			direct = true
		}
	}
	fresh := false
	for numid, pw := range g.pending {
		if now.Sub(pw.at) > pendingTTL {
			delete(g.pending, numid)
			continue
		}
		fresh = true
	}
	fallback := history.SourceCard
	if direct || fresh {
		fallback = history.SourceSync
	}
	for numid := range batch {
		if _, ok := sources[numid]; !ok {
			sources[numid] = fallback
		}
	}
	return sources
}

// dispatch routes one deduplicated element event to its handlers. A remove
// mask swallows everything else that was OR-ed into it.
func (g *Gateway) dispatch(ctx context.Context, ev *ctl.Event, source string) {
	if ev.Mask == ctl.EventRemove {
		g.handleRemove(ctx, ev.ID)
		return
	}
	if ev.Mask&ctl.EventAdd != 0 {
		g.handleAdd(ctx, ev.ID)
	}
	if ev.Mask&ctl.EventInfo != 0 {
		g.handleInfo(ctx, ev.ID)
	}
	if ev.Mask&ctl.EventValue != 0 {
		g.handleValue(ctx, ev.ID, source)
	}
	if ev.Mask&ctl.EventTLV != 0 {
		g.handleTLV(ctx, ev.ID, source)
	}
}

func (g *Gateway) handleValue(ctx context.Context, id ctl.ElemID, source string) {
	value := &ctl.ElemValue{ID: ctl.ElemID{Numid: id.Numid}}
	g.mu.Lock()
	err := g.provider.Read(value)
	g.mu.Unlock()
	if err != nil {
		// The element can vanish between the event and the read.
		if !errors.Is(err, ctl.ErrNotFound) {
			g.logger.Warn("settled read failed", "numid", id.Numid, "error", err)
		}
		return
	}

	key := elemKey(value.ID)
	payload := valuePayload{
		Numid:  value.ID.Numid,
		ID:     key,
		Values: value.Ints,
		Source: source,
	}
	if len(value.Bytes) > 0 {
		payload.Bytes = hex.EncodeToString(value.Bytes)
	}

	g.broadcast(ChannelValueChanged, payload)
	g.publishRetainedJSON(g.topics.ElementValue(value.ID.Numid), payload)
	g.publishEvent(history.KindValue, value.ID, source)
	g.record(ctx, history.Entry{
		Numid:  value.ID.Numid,
		ElemID: key,
		Kind:   history.KindValue,
		Values: value.Ints,
		Source: source,
	})
	if g.telemetry != nil && len(value.Ints) > 0 {
		g.telemetry.WriteElementValue(key, value.ID.Numid, value.Ints)
	}
}

func (g *Gateway) handleInfo(ctx context.Context, id ctl.ElemID) {
	info := &ctl.ElemInfo{ID: ctl.ElemID{Numid: id.Numid}}
	g.mu.Lock()
	err := g.provider.Info(info)
	g.mu.Unlock()
	if err != nil {
		if !errors.Is(err, ctl.ErrNotFound) {
			g.logger.Warn("descriptor read failed", "numid", id.Numid, "error", err)
		}
		return
	}

	key := elemKey(info.ID)
	g.broadcast(ChannelInfoChanged, info)
	g.publishRetainedJSON(g.topics.ElementInfo(info.ID.Numid), info)
	g.publishEvent(history.KindInfo, info.ID, "")
	g.record(ctx, history.Entry{
		Numid:  info.ID.Numid,
		ElemID: key,
		Kind:   history.KindInfo,
		Source: history.SourceCard,
	})
	if g.telemetry != nil {
		g.telemetry.WriteElementEvent(key, history.KindInfo)
	}
}

func (g *Gateway) handleAdd(ctx context.Context, id ctl.ElemID) {
	info := &ctl.ElemInfo{ID: ctl.ElemID{Numid: id.Numid}}
	g.mu.Lock()
	err := g.provider.Info(info)
	g.mu.Unlock()
	if err != nil {
		if !errors.Is(err, ctl.ErrNotFound) {
			g.logger.Warn("descriptor read failed", "numid", id.Numid, "error", err)
		}
		return
	}

	key := elemKey(info.ID)
	g.logger.Info("element added", "numid", info.ID.Numid, "elem", key)
	g.mirrorElement(info.ID.Numid)
	g.publishedMu.Lock()
	g.published[info.ID.Numid] = true
	g.publishedMu.Unlock()

	g.broadcast(ChannelElementAdded, info)
	g.publishEvent(history.KindAdd, info.ID, "")
	g.record(ctx, history.Entry{
		Numid:  info.ID.Numid,
		ElemID: key,
		Kind:   history.KindAdd,
		Source: history.SourceCard,
	})
	if g.telemetry != nil {
		g.telemetry.WriteElementEvent(key, history.KindAdd)
	}
}

func (g *Gateway) handleRemove(ctx context.Context, id ctl.ElemID) {
	key := elemKey(id)
	g.logger.Info("element removed", "numid", id.Numid, "elem", key)
	g.clearRetained(id.Numid)
	g.publishedMu.Lock()
	delete(g.published, id.Numid)
	g.publishedMu.Unlock()

	g.broadcast(ChannelElementRemoved, eventPayload{
		Numid: id.Numid,
		ID:    key,
		Kind:  history.KindRemove,
	})
	g.publishEvent(history.KindRemove, id, "")
	g.record(ctx, history.Entry{
		Numid:  id.Numid,
		ElemID: key,
		Kind:   history.KindRemove,
		Source: history.SourceCard,
	})
	if g.telemetry != nil {
		g.telemetry.WriteElementEvent(key, history.KindRemove)
	}
}

func (g *Gateway) handleTLV(ctx context.Context, id ctl.ElemID, source string) {
	key := elemKey(id)
	g.broadcast(ChannelTLVChanged, eventPayload{
		Numid:  id.Numid,
		ID:     key,
		Kind:   history.KindTLV,
		Source: source,
	})
	g.publishEvent(history.KindTLV, id, source)
	g.record(ctx, history.Entry{
		Numid:  id.Numid,
		ElemID: key,
		Kind:   history.KindTLV,
		Source: source,
	})
	if g.telemetry != nil {
		g.telemetry.WriteElementEvent(key, history.KindTLV)
	}
}

// refreshRetained republishes the retained mirror for the current namespace
// and clears topics for numids that no longer exist. Called at startup and
// after a provider swap, when the numid space may have been re-minted.
func (g *Gateway) refreshRetained() {
	if g.mqtt == nil {
		return
	}
	ids, err := g.listAll()
	if err != nil {
		g.logger.Warn("snapshot list failed", "error", err)
		return
	}
	current := make(map[uint32]bool, len(ids))
	for _, id := range ids {
		current[id.Numid] = true
		g.mirrorElement(id.Numid)
	}

	g.publishedMu.Lock()
	var stale []uint32
	for numid := range g.published {
		if !current[numid] {
			stale = append(stale, numid)
		}
	}
	g.published = current
	g.publishedMu.Unlock()

	for _, numid := range stale {
		g.clearRetained(numid)
	}
	g.logger.Debug("retained mirror refreshed", "elements", len(ids), "cleared", len(stale))
}

// mirrorElement publishes the retained info and value topics for one element.
func (g *Gateway) mirrorElement(numid uint32) {
	if g.mqtt == nil {
		return
	}
	info := &ctl.ElemInfo{ID: ctl.ElemID{Numid: numid}}
	value := &ctl.ElemValue{ID: ctl.ElemID{Numid: numid}}
	g.mu.Lock()
	infoErr := g.provider.Info(info)
	valueErr := g.provider.Read(value)
	g.mu.Unlock()

	if infoErr == nil {
		g.publishRetainedJSON(g.topics.ElementInfo(numid), info)
	}
	if valueErr == nil {
		payload := valuePayload{
			Numid:  value.ID.Numid,
			ID:     elemKey(value.ID),
			Values: value.Ints,
		}
		if len(value.Bytes) > 0 {
			payload.Bytes = hex.EncodeToString(value.Bytes)
		}
		g.publishRetainedJSON(g.topics.ElementValue(numid), payload)
	}
}

// clearRetained removes the element's retained topics from the broker.
func (g *Gateway) clearRetained(numid uint32) {
	if g.mqtt == nil {
		return
	}
	if err := g.mqtt.PublishRetained(g.topics.ElementValue(numid), nil); err != nil {
		g.logger.Debug("retained clear failed", "numid", numid, "error", err)
	}
	if err := g.mqtt.PublishRetained(g.topics.ElementInfo(numid), nil); err != nil {
		g.logger.Debug("retained clear failed", "numid", numid, "error", err)
	}
}

func (g *Gateway) broadcast(channel string, payload any) {
	if g.hub == nil {
		return
	}
	g.hub.Broadcast(channel, payload)
}

func (g *Gateway) publishRetainedJSON(topic string, v any) {
	if g.mqtt == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		g.logger.Error("payload marshal failed", "topic", topic, "error", err)
		return
	}
	if err := g.mqtt.PublishRetained(topic, data); err != nil {
		g.logger.Debug("retained publish failed", "topic", topic, "error", err)
	}
}

// publishEvent emits one entry on the non-retained event stream.
func (g *Gateway) publishEvent(kind string, id ctl.ElemID, source string) {
	if g.mqtt == nil {
		return
	}
	data, err := json.Marshal(eventPayload{
		Numid:  id.Numid,
		ID:     elemKey(id),
		Kind:   kind,
		Source: source,
	})
	if err != nil {
		return
	}
	if err := g.mqtt.Publish(g.topics.Event(kind), data, g.qos, false); err != nil {
		g.logger.Debug("event publish failed", "kind", kind, "error", err)
	}
}

func (g *Gateway) record(ctx context.Context, entry history.Entry) {
	if g.history == nil {
		return
	}
	if err := g.history.Record(ctx, entry); err != nil {
		g.logger.Error("history record failed", "elem", entry.ElemID, "error", err)
		return
	}
	g.recorded.Add(1)
}

func (g *Gateway) pruneHistory(ctx context.Context) {
	removed, err := g.history.Prune(ctx, g.retention)
	if err != nil {
		g.logger.Error("history prune failed", "error", err)
		return
	}
	if removed > 0 {
		g.logger.Info("history pruned", "rows", removed)
	}
}
