package remap

import "github.com/nerrad567/ctlremap/internal/ctl"

// queuedEvent is one fan-out notification waiting to be delivered: the
// identity to report, the application numid to stamp on it, and the event
// mask so far.
type queuedEvent struct {
	id   ctl.ElemID
	app  uint32
	mask ctl.EventMask
}

// eventQueue is a fixed-capacity ring keyed by application numid. One child
// event can concern at most every merge group and every sync sibling once,
// so the capacity chosen at construction is never exceeded; pending entries
// for the same numid collapse into a single entry with a combined mask.
type eventQueue struct {
	entries []queuedEvent
	head    int
	length  int
}

func newEventQueue(capacity int) eventQueue {
	if capacity <= 0 {
		return eventQueue{}
	}
	return eventQueue{entries: make([]queuedEvent, capacity)}
}

func (q *eventQueue) push(id ctl.ElemID, app uint32, mask ctl.EventMask) {
	for i := 0; i < q.length; i++ {
		e := &q.entries[(q.head+i)%len(q.entries)]
		if e.app == app {
			e.mask |= mask
			return
		}
	}
	if q.length >= len(q.entries) {
		return
	}
	q.entries[(q.head+q.length)%len(q.entries)] = queuedEvent{id: id, app: app, mask: mask}
	q.length++
}

func (q *eventQueue) pop() (queuedEvent, bool) {
	if q.length == 0 {
		return queuedEvent{}, false
	}
	e := q.entries[q.head]
	q.head = (q.head + 1) % len(q.entries)
	q.length--
	return e, true
}

// fanoutMerge queues one event per merge group fed by the changed child
// element. Removal downgrades to an info change: the group itself survives
// the loss of a source, its descriptor just needs re-reading.
func (p *Proxy) fanoutMerge(id ctl.ElemID, mask ctl.EventMask) {
	if mask == ctl.EventRemove {
		mask = ctl.EventInfo
	}
	for _, g := range p.merges {
		changed := false
		for i := range g.sources {
			src := &g.sources[i]
			if src.child.Numid == 0 {
				if !src.child.SameSet(id) {
					continue
				}
				src.child.Numid = id.Numid
			}
			if id.Numid != src.child.Numid {
				continue
			}
			changed = true
		}
		if changed {
			p.queue.push(g.id, g.id.Numid, mask)
		}
	}
}

// fanoutSync queues events for the other members of any sync group the
// changed element belongs to, so observers refresh siblings updated by a
// replayed write. Removal events do not fan out, and siblings whose numid is
// still unknown are skipped until they have been observed.
func (p *Proxy) fanoutSync(id ctl.ElemID, mask ctl.EventMask) {
	if mask == ctl.EventRemove {
		return
	}
	for _, g := range p.syncs {
		matched := false
		for i := range g.siblings {
			sid := &g.siblings[i]
			if sid.Numid == 0 {
				if !sid.SameSet(id) {
					continue
				}
				sid.Numid = id.Numid
			}
			if id.Numid == sid.Numid {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for i := range g.siblings {
			sid := g.siblings[i]
			if sid.Numid == id.Numid {
				continue
			}
			pair, ok := p.numids.findChild(sid.Numid)
			if !ok {
				continue
			}
			p.queue.push(sid, pair.app, mask)
		}
	}
}

// ReadEvent drains queued fan-out events first, then pulls one event from
// the child, runs merge and sync fan-out for it, and translates its identity
// to the application namespace. A removal finally drops the element's numid
// pairing so a re-added element pairs afresh.
func (p *Proxy) ReadEvent() (*ctl.Event, error) {
	if e, ok := p.queue.pop(); ok {
		ev := &ctl.Event{Mask: e.mask, ID: e.id}
		ev.ID.Numid = e.app
		return ev, nil
	}

	ev, err := p.child.ReadEvent()
	if err != nil {
		return nil, err
	}
	if ev.Mask != ctl.EventRemove && ev.Mask&(ctl.EventValue|ctl.EventInfo|ctl.EventAdd|ctl.EventTLV) == 0 {
		return ev, nil
	}

	childNumid := ev.ID.Numid
	p.fanoutMerge(ev.ID, ev.Mask)
	p.fanoutSync(ev.ID, ev.Mask)

	if rid := p.rename.findChild(ev.ID); rid != nil {
		if rid.child.Numid == 0 {
			if pair, ok := p.numids.findChild(childNumid); ok {
				rid.child.Numid = pair.child
				rid.app.Numid = pair.app
			}
		}
		ev.ID = rid.app
	} else if pair, ok := p.numids.findChild(childNumid); ok {
		ev.ID.Numid = pair.app
	}

	if ev.Mask == ctl.EventRemove {
		p.numids.forget(childNumid)
	}
	return ev, nil
}
