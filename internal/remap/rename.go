package remap

import "github.com/nerrad567/ctlremap/internal/ctl"

// renameEntry binds one child identity to the application identity it is
// published under. Numids start at zero on both sides and are cached the
// first time the pairing is observed through the numid ledger.
type renameEntry struct {
	child ctl.ElemID
	app   ctl.ElemID
}

// renameTable holds the rename rules. The table is fixed at construction, so
// entry pointers stay valid for the proxy's lifetime; only the cached numids
// are written after construction.
type renameTable struct {
	entries []renameEntry
}

// findChild locates the entry whose child-side identity matches. Cached
// numids win over the set comparison so event ids resolve without string
// compares once warm.
func (t *renameTable) findChild(id ctl.ElemID) *renameEntry {
	if id.Numid != 0 {
		for i := range t.entries {
			if t.entries[i].child.Numid == id.Numid {
				return &t.entries[i]
			}
		}
	}
	for i := range t.entries {
		if t.entries[i].child.SameSet(id) {
			return &t.entries[i]
		}
	}
	return nil
}

// findApp locates the entry whose application-side identity matches.
func (t *renameTable) findApp(id ctl.ElemID) *renameEntry {
	if id.Numid != 0 {
		for i := range t.entries {
			if t.entries[i].app.Numid == id.Numid {
				return &t.entries[i]
			}
		}
	}
	for i := range t.entries {
		if t.entries[i].app.SameSet(id) {
			return &t.entries[i]
		}
	}
	return nil
}
