package remap

import "github.com/nerrad567/ctlremap/internal/ctl"

// syncGroup ties a set of child elements together so a write to one is
// replayed to all of them. Sibling identities live in the child's namespace;
// their numids are cached as they are observed through Info. An optional
// switch is a purely virtual boolean gating the behaviour, on by default.
type syncGroup struct {
	siblings    []ctl.ElemID
	hasSwitch   bool
	switchID    ctl.ElemID
	switchState bool
}

// findSyncSibling locates the group containing the element, matching cached
// sibling numids when the query carries one and the non-numeric identity
// otherwise.
func (p *Proxy) findSyncSibling(id ctl.ElemID) *syncGroup {
	if id.Numid != 0 {
		for _, g := range p.syncs {
			for i := range g.siblings {
				if g.siblings[i].Numid == id.Numid {
					return g
				}
			}
		}
		return nil
	}
	for _, g := range p.syncs {
		for i := range g.siblings {
			if g.siblings[i].SameSet(id) {
				return g
			}
		}
	}
	return nil
}

// findSwitch locates the group whose virtual switch the identity names.
func (p *Proxy) findSwitch(id ctl.ElemID) *syncGroup {
	if id.Numid != 0 {
		for _, g := range p.syncs {
			if g.hasSwitch && g.switchID.Numid == id.Numid {
				return g
			}
		}
		return nil
	}
	for _, g := range p.syncs {
		if g.hasSwitch && g.switchID.SameSet(id) {
			return g
		}
	}
	return nil
}

// updateSyncNumids caches a freshly observed child numid into any sibling
// entry still missing one. Called with child-side identities only.
func (p *Proxy) updateSyncNumids(id ctl.ElemID) {
	if id.Numid == 0 {
		return
	}
	for _, g := range p.syncs {
		for i := range g.siblings {
			if g.siblings[i].Numid == 0 && g.siblings[i].SameSet(id) {
				g.siblings[i].Numid = id.Numid
				break
			}
		}
	}
}

// syncInfo answers Info for virtual sync switches. The descriptor is
// synthesized: a single-channel boolean, readable and writable, with the
// switch's minted identity.
func (p *Proxy) syncInfo(info *ctl.ElemInfo) error {
	g := p.findSwitch(info.ID)
	if g == nil {
		return errNoMatch
	}
	*info = ctl.ElemInfo{
		ID:     g.switchID,
		Type:   ctl.TypeBoolean,
		Access: ctl.AccessReadWrite,
		Count:  1,
	}
	return nil
}

// syncRead answers Read for virtual sync switches from the stored state.
func (p *Proxy) syncRead(value *ctl.ElemValue) error {
	g := p.findSwitch(value.ID)
	if g == nil {
		return errNoMatch
	}
	value.Clear()
	value.SetBool(0, g.switchState)
	return nil
}

// syncWrite handles Write for sync switches and sync members. A switch write
// only flips the stored state. A member write, with the group's switch absent
// or on, replays the caller's payload to every sibling including the written
// element itself; the child decides per sibling whether anything changed, and
// the caller observes those changes through events rather than the return
// value. A member of a switched-off group reports errNoMatch so the write
// falls through to plain passthrough.
func (p *Proxy) syncWrite(value *ctl.ElemValue) (bool, error) {
	if g := p.findSwitch(value.ID); g != nil {
		on := value.Bool(0)
		changed := g.switchState != on
		g.switchState = on
		return changed, nil
	}
	g := p.findSyncSibling(value.ID)
	if g == nil {
		return false, errNoMatch
	}
	if g.hasSwitch && !g.switchState {
		return false, errNoMatch
	}
	for i := range g.siblings {
		v2 := value.Clone()
		v2.ID = g.siblings[i]
		if _, err := p.child.Write(v2); err != nil {
			return false, err
		}
	}
	if value.ID.Numid != 0 {
		if pair, ok := p.numids.findChild(value.ID.Numid); ok {
			value.ID.Numid = pair.app
		}
	}
	return false, nil
}
