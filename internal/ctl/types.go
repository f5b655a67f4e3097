package ctl

import (
	"encoding/json"
	"fmt"
)

// Iface identifies the interface class an element belongs to. The numbering
// follows the conventional control API ordering so numids and identities
// serialize compatibly with external tooling.
type Iface uint32

// Iface constants.
const (
	IfaceCard Iface = iota
	IfaceHwdep
	IfaceMixer
	IfacePCM
	IfaceRawmidi
	IfaceTimer
	IfaceSequencer
)

var ifaceNames = map[Iface]string{
	IfaceCard:      "CARD",
	IfaceHwdep:     "HWDEP",
	IfaceMixer:     "MIXER",
	IfacePCM:       "PCM",
	IfaceRawmidi:   "RAWMIDI",
	IfaceTimer:     "TIMER",
	IfaceSequencer: "SEQUENCER",
}

// String returns the conventional upper-case interface name.
func (i Iface) String() string {
	if name, ok := ifaceNames[i]; ok {
		return name
	}
	return fmt.Sprintf("IFACE(%d)", uint32(i))
}

// ParseIface resolves an upper-case interface name to its Iface value.
func ParseIface(s string) (Iface, error) {
	for iface, name := range ifaceNames {
		if name == s {
			return iface, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown interface %q", ErrInvalidID, s)
}

// MarshalJSON renders the interface as its conventional name.
func (i Iface) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// UnmarshalJSON accepts either the conventional name or a raw number.
func (i *Iface) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		iface, err := ParseIface(s)
		if err != nil {
			return err
		}
		*i = iface
		return nil
	}
	var n uint32
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*i = Iface(n)
	return nil
}

// ElemType describes the payload type of an element's value.
type ElemType uint32

// ElemType constants.
const (
	TypeNone ElemType = iota
	TypeBoolean
	TypeInteger
	TypeEnumerated
	TypeBytes
	TypeIEC958
	TypeInteger64
)

var elemTypeNames = map[ElemType]string{
	TypeNone:       "NONE",
	TypeBoolean:    "BOOLEAN",
	TypeInteger:    "INTEGER",
	TypeEnumerated: "ENUMERATED",
	TypeBytes:      "BYTES",
	TypeIEC958:     "IEC958",
	TypeInteger64:  "INTEGER64",
}

// String returns the conventional upper-case type name.
func (t ElemType) String() string {
	if name, ok := elemTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TYPE(%d)", uint32(t))
}

// ParseElemType resolves an upper-case type name to its ElemType value.
func ParseElemType(s string) (ElemType, error) {
	for t, name := range elemTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("ctl: unknown element type %q", s)
}

// MarshalJSON renders the type as its conventional name.
func (t ElemType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts either the conventional name or a raw number.
func (t *ElemType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		typ, err := ParseElemType(s)
		if err != nil {
			return err
		}
		*t = typ
		return nil
	}
	var n uint32
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = ElemType(n)
	return nil
}

// Numeric returns true for types whose values live in integer channels.
func (t ElemType) Numeric() bool {
	switch t {
	case TypeBoolean, TypeInteger, TypeInteger64, TypeEnumerated:
		return true
	default:
		return false
	}
}

// Access is a bit set describing what operations an element supports and
// its current lock state. Bit positions follow the conventional control API.
type Access uint32

// Access bits.
const (
	AccessRead       Access = 1 << 0
	AccessWrite      Access = 1 << 1
	AccessVolatile   Access = 1 << 2
	AccessTLVRead    Access = 1 << 4
	AccessTLVWrite   Access = 1 << 5
	AccessTLVCommand Access = 1 << 6
	AccessInactive   Access = 1 << 8
	AccessLock       Access = 1 << 9
	AccessOwner      Access = 1 << 10
	AccessUser       Access = 1 << 29

	// AccessReadWrite is the common case for writable controls.
	AccessReadWrite = AccessRead | AccessWrite
)

// Has reports whether all bits in mask are set.
func (a Access) Has(mask Access) bool { return a&mask == mask }

// ElemID names one control element. Numid is a numeric shortcut assigned by
// whichever side mints it first; the remaining fields form the full identity.
type ElemID struct {
	Numid     uint32 `json:"numid"`
	Iface     Iface  `json:"iface"`
	Device    uint32 `json:"device,omitempty"`
	Subdevice uint32 `json:"subdevice,omitempty"`
	Name      string `json:"name"`
	Index     uint32 `json:"index,omitempty"`
}

// SameSet reports whether the non-numeric identity fields match.
// Numids are deliberately excluded.
func (id ElemID) SameSet(other ElemID) bool {
	return id.Iface == other.Iface &&
		id.Device == other.Device &&
		id.Subdevice == other.Subdevice &&
		id.Name == other.Name &&
		id.Index == other.Index
}

// Match reports whether two identities refer to the same element: equal
// non-zero numids, or a full non-numeric field match.
func (id ElemID) Match(other ElemID) bool {
	if id.Numid != 0 && other.Numid != 0 {
		return id.Numid == other.Numid
	}
	return id.SameSet(other)
}

// ElemInfo describes an element: identity, type, channel count, access bits
// and, for bounded numeric types, the value range.
type ElemInfo struct {
	ID     ElemID   `json:"id"`
	Type   ElemType `json:"type"`
	Access Access   `json:"access"`
	Count  uint32   `json:"count"`

	// Owner is the process id holding the element lock, if any.
	Owner int `json:"owner,omitempty"`

	// Range for TypeInteger and TypeInteger64 elements.
	Min  int64 `json:"min,omitempty"`
	Max  int64 `json:"max,omitempty"`
	Step int64 `json:"step,omitempty"`

	// Enumerated item names for TypeEnumerated elements.
	Items []string `json:"items,omitempty"`
}

// SameRange reports whether two descriptors agree on their numeric range.
func (info *ElemInfo) SameRange(other *ElemInfo) bool {
	return info.Min == other.Min && info.Max == other.Max && info.Step == other.Step
}

// Clone returns an independent copy of the descriptor.
func (info *ElemInfo) Clone() *ElemInfo {
	if info == nil {
		return nil
	}
	cpy := *info
	if info.Items != nil {
		cpy.Items = make([]string, len(info.Items))
		copy(cpy.Items, info.Items)
	}
	return &cpy
}

// ElemList is the enumeration exchange structure. The caller sets Offset and
// Space; the provider fills IDs with up to Space identities starting at
// Offset and sets Count to the total number of elements available.
type ElemList struct {
	Offset uint32   `json:"offset"`
	Space  uint32   `json:"space"`
	Count  uint32   `json:"count"`
	IDs    []ElemID `json:"ids"`
}

// Used returns the number of identities filled in by the provider.
func (l *ElemList) Used() uint32 { return uint32(len(l.IDs)) }

// EventMask describes what changed about an element. Remove is all bits set,
// so it swallows any mask it is combined with.
type EventMask uint32

// EventMask constants.
const (
	EventValue EventMask = 1 << 0
	EventInfo  EventMask = 1 << 1
	EventAdd   EventMask = 1 << 2
	EventTLV   EventMask = 1 << 3

	EventRemove EventMask = ^EventMask(0)
)

// Names expands the mask into human-readable flags.
func (m EventMask) Names() []string {
	if m == EventRemove {
		return []string{"REMOVE"}
	}
	var names []string
	if m&EventValue != 0 {
		names = append(names, "VALUE")
	}
	if m&EventInfo != 0 {
		names = append(names, "INFO")
	}
	if m&EventAdd != 0 {
		names = append(names, "ADD")
	}
	if m&EventTLV != 0 {
		names = append(names, "TLV")
	}
	return names
}

// Event is one element change notification.
type Event struct {
	Mask EventMask `json:"mask"`
	ID   ElemID    `json:"id"`
}
