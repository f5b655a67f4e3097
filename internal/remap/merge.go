package remap

import (
	"bytes"
	"fmt"

	"github.com/nerrad567/ctlremap/internal/ctl"
)

// mergeAccessBits are the access bits every source of a merge group must
// agree on. Lock and ownership bits may differ and are unioned instead.
const mergeAccessBits = ctl.AccessRead | ctl.AccessWrite | ctl.AccessVolatile |
	ctl.AccessTLVRead | ctl.AccessTLVWrite

// mergeSource is one child element feeding a merge group, together with its
// slice of the channel matrix. rows is indexed by destination channel; each
// row holds srcCount source-channel slots, -1 marking an unused slot. The
// child numid is cached on first contact with the child.
type mergeSource struct {
	child    ctl.ElemID
	srcCount int
	rows     [][]int32
}

// mergeGroup is one virtual control built from several child elements. The
// element type is learned from the first source descriptor and cached; until
// then typ is TypeNone and any value operation triggers a describe first.
type mergeGroup struct {
	id      ctl.ElemID
	typ     ctl.ElemType
	sources []mergeSource
}

// findMerge locates the merge group for an application identity. A non-zero
// numid is authoritative; otherwise the non-numeric fields decide.
func (p *Proxy) findMerge(id ctl.ElemID) *mergeGroup {
	if id.Numid != 0 {
		return p.findMergeNumid(id.Numid)
	}
	for _, g := range p.merges {
		if g.id.SameSet(id) {
			return g
		}
	}
	return nil
}

func (p *Proxy) findMergeNumid(numid uint32) *mergeGroup {
	if numid == 0 {
		return nil
	}
	for _, g := range p.merges {
		if g.id.Numid == numid {
			return g
		}
	}
	return nil
}

// mergeInfo answers Info for merge groups, or errNoMatch when the identity
// names no group.
func (p *Proxy) mergeInfo(info *ctl.ElemInfo) error {
	g := p.findMerge(info.ID)
	if g == nil {
		return errNoMatch
	}
	return p.mergeDescribe(g, info)
}

// mergeDescribe builds the group descriptor from the source descriptors and
// verifies the sources still agree. The first source is the template: every
// other source must match its type, shared access bits and numeric range.
// The result takes the union of access bits, the largest channel count, and
// the first non-zero lock owner.
func (p *Proxy) mergeDescribe(g *mergeGroup, info *ctl.ElemInfo) error {
	first := &g.sources[0]
	base := ctl.ElemInfo{ID: first.child}
	if err := p.child.Info(&base); err != nil {
		return err
	}
	switch base.Type {
	case ctl.TypeBoolean, ctl.TypeInteger, ctl.TypeInteger64, ctl.TypeBytes:
	default:
		return fmt.Errorf("%w: cannot merge %s element %s", ErrInvalidConfiguration, base.Type, first.child)
	}
	first.child.Numid = base.ID.Numid
	g.typ = base.Type

	access := base.Access
	owner := base.Owner
	count := len(first.rows)
	for i := 1; i < len(g.sources); i++ {
		src := &g.sources[i]
		cur := ctl.ElemInfo{ID: src.child}
		if err := p.child.Info(&cur); err != nil {
			return err
		}
		if cur.Type != base.Type {
			return fmt.Errorf("%w: %s is %s, first source is %s", ErrInconsistentSources, src.child, cur.Type, base.Type)
		}
		if cur.Access&mergeAccessBits != base.Access&mergeAccessBits {
			return fmt.Errorf("%w: %s access differs from first source", ErrInconsistentSources, src.child)
		}
		if base.Type != ctl.TypeBytes && !cur.SameRange(&base) {
			return fmt.Errorf("%w: %s range differs from first source", ErrInconsistentSources, src.child)
		}
		src.child.Numid = cur.ID.Numid
		access |= cur.Access
		if owner == 0 {
			owner = cur.Owner
		}
		if len(src.rows) > count {
			count = len(src.rows)
		}
	}

	*info = ctl.ElemInfo{
		ID:     g.id,
		Type:   base.Type,
		Access: access,
		Count:  uint32(count),
	}
	if base.Type != ctl.TypeBytes {
		info.Min, info.Max, info.Step = base.Min, base.Max, base.Step
	}
	if access.Has(ctl.AccessLock) {
		info.Owner = owner
	}
	return nil
}

// mergeEnsure makes sure the group's element type is known before a value
// operation, running the full describe pass on first use.
func (p *Proxy) mergeEnsure(g *mergeGroup) error {
	if g.typ != ctl.TypeNone {
		return nil
	}
	var scratch ctl.ElemInfo
	return p.mergeDescribe(g, &scratch)
}

// channelCount returns the group's destination channel count, the largest
// row count over all sources.
func (g *mergeGroup) channelCount() int {
	count := 0
	for i := range g.sources {
		if n := len(g.sources[i].rows); n > count {
			count = n
		}
	}
	return count
}

// mergeRead answers Read for merge groups. Every source is read once; each
// destination channel takes the minimum over all source channels mapped to
// it, so a merged volume reflects the quietest underlying channel. Byte
// payloads are copied per destination instead. Source channels beyond the
// child's channel count contribute nothing.
func (p *Proxy) mergeRead(value *ctl.ElemValue) error {
	g := p.findMerge(value.ID)
	if g == nil {
		return errNoMatch
	}
	if err := p.mergeEnsure(g); err != nil {
		return err
	}
	count := g.channelCount()
	value.ID = g.id
	value.Clear()
	var filled []bool
	if g.typ == ctl.TypeBytes {
		value.Bytes = make([]byte, count)
	} else {
		value.Ints = make([]int64, count)
		filled = make([]bool, count)
	}

	for i := range g.sources {
		src := &g.sources[i]
		cur := ctl.ElemValue{ID: src.child}
		if err := p.child.Read(&cur); err != nil {
			return err
		}
		switch g.typ {
		case ctl.TypeBoolean, ctl.TypeInteger, ctl.TypeInteger64:
			for dst, row := range src.rows {
				for _, ch := range row {
					if ch < 0 || int(ch) >= len(cur.Ints) {
						continue
					}
					v := cur.Ints[ch]
					if !filled[dst] || v < value.Ints[dst] {
						value.Ints[dst] = v
						filled[dst] = true
					}
				}
			}
		case ctl.TypeBytes:
			if src.srcCount > 1 {
				return fmt.Errorf("%w: byte merge %s has %d source channels", ErrInvalidConfiguration, src.child, src.srcCount)
			}
			for dst, row := range src.rows {
				ch := row[0]
				if ch < 0 || int(ch) >= len(cur.Bytes) {
					continue
				}
				value.Bytes[dst] = cur.Bytes[ch]
			}
		}
	}
	return nil
}

// mergeWrite answers Write for merge groups. Each source is read back, the
// mapped source channels are overwritten with the destination values, and the
// child is written only when that changed something. A reported change is
// swallowed: the caller sees changed=false and learns of real changes through
// events, the same as every other observer of the group.
func (p *Proxy) mergeWrite(value *ctl.ElemValue) (bool, error) {
	g := p.findMerge(value.ID)
	if g == nil {
		return false, errNoMatch
	}
	if err := p.mergeEnsure(g); err != nil {
		return false, err
	}
	value.ID = g.id

	for i := range g.sources {
		src := &g.sources[i]
		cur := ctl.ElemValue{ID: src.child}
		if err := p.child.Read(&cur); err != nil {
			return false, err
		}
		changed := false
		switch g.typ {
		case ctl.TypeBoolean, ctl.TypeInteger, ctl.TypeInteger64:
			for dst, row := range src.rows {
				want := value.Int(dst)
				for _, ch := range row {
					if ch < 0 || int(ch) >= len(cur.Ints) {
						continue
					}
					if cur.Ints[ch] != want {
						cur.Ints[ch] = want
						changed = true
					}
				}
			}
		case ctl.TypeBytes:
			if src.srcCount > 1 {
				return false, fmt.Errorf("%w: byte merge %s has %d source channels", ErrInvalidConfiguration, src.child, src.srcCount)
			}
			for dst, row := range src.rows {
				ch := row[0]
				if ch < 0 || int(ch) >= len(cur.Bytes) {
					continue
				}
				var want byte
				if dst < len(value.Bytes) {
					want = value.Bytes[dst]
				}
				if cur.Bytes[ch] != want {
					cur.Bytes[ch] = want
					changed = true
				}
			}
		}
		if changed {
			if _, err := p.child.Write(&cur); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// mergeSourceNumid resolves and caches a source's child numid, registering
// the pairing in the numid ledger so later event translation finds it.
func (p *Proxy) mergeSourceNumid(src *mergeSource) (uint32, error) {
	if src.child.Numid == 0 {
		cur := ctl.ElemInfo{ID: src.child}
		if err := p.child.Info(&cur); err != nil {
			return 0, err
		}
		if cur.ID.Numid == 0 {
			return 0, fmt.Errorf("remap: child element %s reported no numid", src.child)
		}
		src.child.Numid = cur.ID.Numid
		p.numids.findChild(src.child.Numid)
	}
	return src.child.Numid, nil
}

// mergeTLVRead answers TLVRead for merge groups. All sources must carry
// byte-identical blobs; the first source's blob is returned.
func (p *Proxy) mergeTLVRead(g *mergeGroup) ([]byte, error) {
	numid, err := p.mergeSourceNumid(&g.sources[0])
	if err != nil {
		return nil, err
	}
	blob, err := p.child.TLVRead(numid)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(g.sources); i++ {
		src := &g.sources[i]
		numid, err := p.mergeSourceNumid(src)
		if err != nil {
			return nil, err
		}
		other, err := p.child.TLVRead(numid)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(blob, other) {
			return nil, fmt.Errorf("%w: %s TLV differs from first source", ErrInconsistentSources, src.child)
		}
	}
	return blob, nil
}
