package remap

// numidPair records one row of the numid ledger: the child's kernel-assigned
// numid and the application-side numid the proxy hands out for it. Virtual
// controls minted at construction have no child element and store child 0.
type numidPair struct {
	child uint32
	app   uint32
}

// numidTable owns the bidirectional numid ledger. While inactive (rename-only
// rule sets) every lookup yields the identity mapping and nothing is stored,
// so a pure rename proxy carries no ledger at all.
type numidTable struct {
	active  bool
	appLast uint32
	pairs   []numidPair
}

// mintApp reserves the next application numid for a virtual control and
// records it with no child counterpart. Virtual numids therefore start at 1
// and follow construction order.
func (t *numidTable) mintApp() uint32 {
	t.appLast++
	t.pairs = append(t.pairs, numidPair{child: 0, app: t.appLast})
	return t.appLast
}

// findApp resolves an application numid to its ledger row. Inactive tables
// report the identity pair for any numid.
func (t *numidTable) findApp(app uint32) (numidPair, bool) {
	if !t.active {
		return numidPair{child: app, app: app}, true
	}
	for _, p := range t.pairs {
		if p.app == app {
			return p, true
		}
	}
	return numidPair{}, false
}

// childNew records a fresh pairing for a child numid. The identity mapping is
// preferred; when the child numid is already claimed on the application side
// (typically by a minted virtual control) the allocator walks appLast forward
// to the next free application numid. A child numid of zero cannot be paired.
func (t *numidTable) childNew(child uint32) (numidPair, bool) {
	if child == 0 {
		return numidPair{}, false
	}
	if !t.active {
		return numidPair{child: child, app: child}, true
	}
	app := child
	if _, taken := t.findApp(child); taken {
		for {
			if _, taken := t.findApp(t.appLast); !taken {
				break
			}
			t.appLast++
		}
		app = t.appLast
	}
	p := numidPair{child: child, app: app}
	t.pairs = append(t.pairs, p)
	return p, true
}

// findChild resolves a child numid to its ledger row, creating the pairing on
// first sight. Child numid zero never resolves; virtual rows also store child
// zero and must not be reachable from this direction.
func (t *numidTable) findChild(child uint32) (numidPair, bool) {
	if child == 0 {
		return numidPair{}, false
	}
	if !t.active {
		return numidPair{child: child, app: child}, true
	}
	for _, p := range t.pairs {
		if p.child == child {
			return p, true
		}
	}
	return t.childNew(child)
}

// forget drops every row pairing the given child numid after the child
// removed the element. A re-added element arrives under a fresh child numid
// and pairs anew; appLast only moves forward, so counter-allocated
// application numids are never reused either.
func (t *numidTable) forget(child uint32) {
	if child == 0 {
		return
	}
	kept := t.pairs[:0]
	for _, p := range t.pairs {
		if p.child != child {
			kept = append(kept, p)
		}
	}
	t.pairs = kept
}
