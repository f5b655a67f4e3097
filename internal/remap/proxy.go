package remap

import (
	"errors"
	"fmt"

	"github.com/nerrad567/ctlremap/internal/ctl"
)

// Proxy implements ctl.Provider on top of a child provider. Reads, writes
// and descriptor queries are tried against the merge and sync tables first,
// then fall through to plain passthrough with rename and numid translation.
// The proxy assumes ownership of the child: closing the proxy closes it.
type Proxy struct {
	child  ctl.Provider
	rename renameTable
	numids numidTable
	merges []*mergeGroup
	syncs  []*syncGroup
	queue  eventQueue
}

// New wraps child according to the rule set. An empty rule set returns the
// child itself, so stacking a proxy is free until rules exist. A rename-only
// rule set leaves the numid ledger inactive and numids pass through
// untouched; merge or sync rules activate it and mint virtual numids.
func New(child ctl.Provider, cfg *Config) (ctl.Provider, error) {
	if cfg.Empty() {
		return child, nil
	}
	t, err := compileRules(cfg)
	if err != nil {
		return nil, err
	}
	capacity := len(t.merges)
	for _, g := range t.syncs {
		capacity += len(g.siblings)
	}
	return &Proxy{
		child:  child,
		rename: t.rename,
		numids: t.numids,
		merges: t.merges,
		syncs:  t.syncs,
		queue:  newEventQueue(capacity),
	}, nil
}

// idToChild rewrites an application identity to the child's namespace.
// Renamed elements swap to their child identity; asking for a renamed
// child's original identity reports ErrNotFound, since that identity is
// hidden while the rename is in force. Unrenamed identities only have their
// numid translated, falling back to name resolution when no pairing exists.
func (p *Proxy) idToChild(id *ctl.ElemID) (*renameEntry, error) {
	if rid := p.rename.findApp(*id); rid != nil {
		if rid.app.Numid == 0 {
			if pair, ok := p.numids.findApp(id.Numid); ok {
				rid.child.Numid = pair.child
				rid.app.Numid = pair.app
			}
		}
		*id = rid.child
		return rid, nil
	}
	if p.rename.findChild(*id) != nil {
		return nil, ctl.ErrNotFound
	}
	if pair, ok := p.numids.findApp(id.Numid); ok {
		id.Numid = pair.child
	} else {
		id.Numid = 0
	}
	return nil, nil
}

// idToApp rewrites a child identity back to the application namespace after
// a child call, pairing freshly seen child numids on the way. The child's
// error passes through untouched; on failure only a rename's identity swap
// is applied, since there is no numid worth caching.
func (p *Proxy) idToApp(id *ctl.ElemID, rid *renameEntry, opErr error) error {
	if rid != nil {
		if opErr == nil && rid.app.Numid == 0 {
			pair, ok := p.numids.childNew(id.Numid)
			if !ok {
				return fmt.Errorf("remap: child element %s reported no numid", *id)
			}
			rid.child.Numid = pair.child
			rid.app.Numid = pair.app
		}
		*id = rid.app
		return opErr
	}
	if opErr == nil {
		pair, ok := p.numids.findChild(id.Numid)
		if !ok {
			return fmt.Errorf("remap: child element %s reported no numid", *id)
		}
		id.Numid = pair.app
	}
	return opErr
}

// Close releases the proxy and the child it wraps.
func (p *Proxy) Close() error { return p.child.Close() }

// Subscribe passes event subscription through to the child.
func (p *Proxy) Subscribe(enable bool) error { return p.child.Subscribe(enable) }

// Nonblock passes the blocking mode through to the child.
func (p *Proxy) Nonblock(enable bool) error { return p.child.Nonblock(enable) }

// Notify exposes the child's readiness channel. Queued fan-out events are
// only ever produced while draining ReadEvent, so the child's signal remains
// a valid readiness hint for the combined stream.
func (p *Proxy) Notify() <-chan struct{} { return p.child.Notify() }

// List enumerates the child's elements with renames and numid pairing
// applied, then appends the virtual controls: merge groups in rule order
// followed by sync switches. Count always reports the combined total.
func (p *Proxy) List(list *ctl.ElemList) error {
	if err := p.child.List(list); err != nil {
		return err
	}
	for i := range list.IDs {
		id := &list.IDs[i]
		childNumid := id.Numid
		rid := p.rename.findChild(*id)
		pair, ok := p.numids.findChild(childNumid)
		if !ok {
			return fmt.Errorf("remap: child element %s reported no numid", *id)
		}
		if rid != nil {
			rid.child.Numid = pair.child
			rid.app.Numid = pair.app
			*id = rid.app
		} else {
			id.Numid = pair.app
		}
	}

	childCount := list.Count
	virtuals := make([]ctl.ElemID, 0, len(p.merges)+len(p.syncs))
	for _, g := range p.merges {
		virtuals = append(virtuals, g.id)
	}
	for _, g := range p.syncs {
		if g.hasSwitch {
			virtuals = append(virtuals, g.switchID)
		}
	}
	skip := 0
	if list.Offset > childCount {
		skip = int(list.Offset - childCount)
	}
	for _, id := range virtuals {
		if skip > 0 {
			skip--
			continue
		}
		if list.Used() >= list.Space {
			break
		}
		list.IDs = append(list.IDs, id)
	}
	list.Count = childCount + uint32(len(virtuals))
	return nil
}

// Info resolves a descriptor: merge groups and sync switches synthesize
// theirs, everything else is translated, asked of the child and translated
// back. Sibling numids are cached from successful child descriptors so sync
// matching works without extra round trips.
func (p *Proxy) Info(info *ctl.ElemInfo) error {
	if err := p.mergeInfo(info); !errors.Is(err, errNoMatch) {
		return err
	}
	if err := p.syncInfo(info); !errors.Is(err, errNoMatch) {
		return err
	}
	rid, err := p.idToChild(&info.ID)
	if err != nil {
		return err
	}
	opErr := p.child.Info(info)
	if opErr == nil && len(p.syncs) > 0 {
		p.updateSyncNumids(info.ID)
	}
	return p.idToApp(&info.ID, rid, opErr)
}

// Read resolves a value: merge groups reduce their sources, sync switches
// report their stored state, and plain elements pass through translated.
func (p *Proxy) Read(value *ctl.ElemValue) error {
	if err := p.mergeRead(value); !errors.Is(err, errNoMatch) {
		return err
	}
	if err := p.syncRead(value); !errors.Is(err, errNoMatch) {
		return err
	}
	rid, err := p.idToChild(&value.ID)
	if err != nil {
		return err
	}
	opErr := p.child.Read(value)
	return p.idToApp(&value.ID, rid, opErr)
}

// Write stores a value: merge groups distribute it to their sources, sync
// groups replay it to every sibling, and plain elements pass through
// translated. Merge and sync member writes always report changed=false;
// real changes surface as events.
func (p *Proxy) Write(value *ctl.ElemValue) (bool, error) {
	if changed, err := p.mergeWrite(value); !errors.Is(err, errNoMatch) {
		return changed, err
	}
	if changed, err := p.syncWrite(value); !errors.Is(err, errNoMatch) {
		return changed, err
	}
	rid, err := p.idToChild(&value.ID)
	if err != nil {
		return false, err
	}
	changed, opErr := p.child.Write(value)
	if err := p.idToApp(&value.ID, rid, opErr); err != nil {
		return false, err
	}
	return changed, nil
}

// Lock acquires the child's element lock. Virtual controls own no child
// element, so locking one fails with the child's lookup error.
func (p *Proxy) Lock(id *ctl.ElemID) error {
	rid, err := p.idToChild(id)
	if err != nil {
		return err
	}
	opErr := p.child.Lock(id)
	return p.idToApp(id, rid, opErr)
}

// Unlock releases the child's element lock.
func (p *Proxy) Unlock(id *ctl.ElemID) error {
	rid, err := p.idToChild(id)
	if err != nil {
		return err
	}
	opErr := p.child.Unlock(id)
	return p.idToApp(id, rid, opErr)
}

// TLVRead fetches a TLV blob. Merge groups require all sources to agree and
// return the shared blob; otherwise the numid is translated and passed on.
func (p *Proxy) TLVRead(numid uint32) ([]byte, error) {
	if g := p.findMergeNumid(numid); g != nil {
		return p.mergeTLVRead(g)
	}
	pair, ok := p.numids.findApp(numid)
	if !ok {
		return nil, ctl.ErrNotFound
	}
	return p.child.TLVRead(pair.child)
}

// TLVWrite replaces a TLV blob. Merged controls reject writes: there is no
// meaningful way to split one blob across sources.
func (p *Proxy) TLVWrite(numid uint32, data []byte) error {
	if p.findMergeNumid(numid) != nil {
		return fmt.Errorf("%w: TLV write to merged control", ctl.ErrNotSupported)
	}
	pair, ok := p.numids.findApp(numid)
	if !ok {
		return ctl.ErrNotFound
	}
	return p.child.TLVWrite(pair.child, data)
}

// TLVCommand issues a TLV command, rejected for merged controls like writes.
func (p *Proxy) TLVCommand(numid uint32, data []byte) error {
	if p.findMergeNumid(numid) != nil {
		return fmt.Errorf("%w: TLV command to merged control", ctl.ErrNotSupported)
	}
	pair, ok := p.numids.findApp(numid)
	if !ok {
		return ctl.ErrNotFound
	}
	return p.child.TLVCommand(pair.child, data)
}
