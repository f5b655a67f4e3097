package remap

import (
	"testing"

	"github.com/nerrad567/ctlremap/internal/ctl"
)

const syncRules = `
sync:
  - switch: "name='Sync Playback Switches'"
    controls:
      - "name='Front Playback Switch'"
      - "name='Surround Playback Switch'"
`

func readBool(t *testing.T, p ctl.Provider, name string) bool {
	t.Helper()
	value := ctl.ElemValue{ID: mixerName(name)}
	if err := p.Read(&value); err != nil {
		t.Fatalf("Read(%s) error = %v", name, err)
	}
	return value.Bool(0)
}

func writeBool(t *testing.T, p ctl.Provider, name string, on bool) bool {
	t.Helper()
	value := ctl.ElemValue{ID: mixerName(name)}
	value.SetBool(0, on)
	changed, err := p.Write(&value)
	if err != nil {
		t.Fatalf("Write(%s) error = %v", name, err)
	}
	return changed
}

func TestSyncSwitchDescriptor(t *testing.T) {
	child := newChild(t)
	p := newProxy(t, child, syncRules)

	info := ctl.ElemInfo{ID: mixerName("Sync Playback Switches")}
	if err := p.Info(&info); err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.Type != ctl.TypeBoolean || info.Count != 1 {
		t.Errorf("Info() type = %v count = %d, want a single-channel BOOLEAN", info.Type, info.Count)
	}
	if info.ID.Numid != 1 {
		t.Errorf("Info() numid = %d, want the minted 1", info.ID.Numid)
	}
	if !info.Access.Has(ctl.AccessReadWrite) {
		t.Errorf("Info() access = %v, want read-write", info.Access)
	}

	list := ctl.ElemList{Space: 16}
	if err := p.List(&list); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if list.Count != 6 {
		t.Errorf("List() count = %d, want 5 child elements plus the switch", list.Count)
	}
}

func TestSyncSwitchToggle(t *testing.T) {
	child := newChild(t)
	p := newProxy(t, child, syncRules)

	if !readBool(t, p, "Sync Playback Switches") {
		t.Fatal("switch must start on")
	}
	if changed := writeBool(t, p, "Sync Playback Switches", false); !changed {
		t.Error("turning the switch off reported changed = false")
	}
	if changed := writeBool(t, p, "Sync Playback Switches", false); changed {
		t.Error("rewriting the same switch state reported changed = true")
	}
	if readBool(t, p, "Sync Playback Switches") {
		t.Error("switch still reads on after turning it off")
	}
}

func TestSyncWritePropagates(t *testing.T) {
	child := newChild(t)
	p := newProxy(t, child, syncRules)

	// Front starts on, surround off. Writing front drags surround along.
	if changed := writeBool(t, p, "Front Playback Switch", false); changed {
		t.Error("sync member write reported changed = true")
	}
	if readBool(t, child, "Surround Playback Switch") {
		t.Error("surround did not follow front off")
	}

	writeBool(t, p, "Front Playback Switch", true)
	if !readBool(t, child, "Front Playback Switch") {
		t.Error("front not written")
	}
	if !readBool(t, child, "Surround Playback Switch") {
		t.Error("surround did not follow front on")
	}
}

func TestSyncGatedOffPassesThrough(t *testing.T) {
	child := newChild(t)
	p := newProxy(t, child, syncRules)

	// Align both members, then close the gate.
	writeBool(t, p, "Front Playback Switch", false)
	writeBool(t, p, "Sync Playback Switches", false)

	changed := writeBool(t, p, "Front Playback Switch", true)
	if !changed {
		t.Error("gated-off write lost the child's changed report")
	}
	if !readBool(t, child, "Front Playback Switch") {
		t.Error("front not written while gated off")
	}
	if readBool(t, child, "Surround Playback Switch") {
		t.Error("surround followed front despite the switch being off")
	}

	// Reopening the gate restores replay.
	writeBool(t, p, "Sync Playback Switches", true)
	writeBool(t, p, "Front Playback Switch", true)
	if !readBool(t, child, "Surround Playback Switch") {
		t.Error("surround did not follow after the switch came back on")
	}
}

func TestSyncMemberWriteByNumid(t *testing.T) {
	child := newChild(t)
	p := newProxy(t, child, syncRules)

	info := ctl.ElemInfo{ID: mixerName("Front Playback Switch")}
	if err := p.Info(&info); err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.ID.Numid == 0 {
		t.Fatal("Info() left numid unresolved")
	}

	value := ctl.ElemValue{ID: ctl.ElemID{Numid: info.ID.Numid}, Ints: []int64{0}}
	if _, err := p.Write(&value); err != nil {
		t.Fatalf("Write(numid) error = %v", err)
	}
	if readBool(t, child, "Surround Playback Switch") != readBool(t, child, "Front Playback Switch") {
		t.Error("numid write did not replay to the sibling")
	}
}

func TestSyncBareGroupHasNoSwitch(t *testing.T) {
	child := newChild(t)
	p := newProxy(t, child, `
sync:
  - - "name='Front Playback Volume'"
    - "name='Surround Playback Volume'"
`)

	// No switch exists, so the group is always in force.
	value := ctl.ElemValue{ID: mixerName("Front Playback Volume"), Ints: []int64{50, 50}}
	if _, err := p.Write(&value); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	direct := ctl.ElemValue{ID: mixerName("Surround Playback Volume")}
	if err := child.Read(&direct); err != nil {
		t.Fatalf("child Read() error = %v", err)
	}
	if direct.Int(0) != 50 || direct.Int(1) != 50 {
		t.Errorf("surround = %v, want [50 50] via replay", direct.Ints)
	}

	list := ctl.ElemList{Space: 16}
	if err := p.List(&list); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if list.Count != 5 {
		t.Errorf("List() count = %d, want no extra virtual controls", list.Count)
	}
}
