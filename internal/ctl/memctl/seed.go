package memctl

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/ctlremap/internal/ctl"
)

// ElemSpec declares one element for seeding, either programmatically or from
// a YAML definitions file.
type ElemSpec struct {
	// ID is the textual element identity, e.g. "iface=MIXER,name='Master'".
	ID string `yaml:"id"`

	// Type is the element type name (BOOLEAN, INTEGER, INTEGER64,
	// ENUMERATED, BYTES, IEC958).
	Type string `yaml:"type"`

	// Count is the channel count; defaults to 1.
	Count uint32 `yaml:"count"`

	// Range for integer types.
	Min  int64 `yaml:"min"`
	Max  int64 `yaml:"max"`
	Step int64 `yaml:"step"`

	// Items holds the enumeration names for ENUMERATED elements.
	Items []string `yaml:"items"`

	// Initial numeric channel values; missing channels start at zero.
	Initial []int64 `yaml:"initial"`

	// Bytes is the hex-encoded initial payload for BYTES/IEC958 elements.
	Bytes string `yaml:"bytes"`

	// TLV is the hex-encoded TLV blob; presence implies tlv_read access.
	TLV string `yaml:"tlv"`

	// Access lists access flags (read, write, volatile, tlv_read,
	// tlv_write, tlv_command, user). Defaults to read and write.
	Access []string `yaml:"access"`
}

type seedFile struct {
	Elements []ElemSpec `yaml:"elements"`
}

// LoadSpecs reads element definitions from a YAML file.
func LoadSpecs(path string) ([]ElemSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading element definitions: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing element definitions: %w", err)
	}
	return file.Elements, nil
}

// Seed adds every spec to the provider, stopping at the first failure.
func (p *Provider) Seed(specs []ElemSpec) error {
	for i := range specs {
		if _, err := p.AddElement(specs[i]); err != nil {
			return fmt.Errorf("element %d (%s): %w", i, specs[i].ID, err)
		}
	}
	return nil
}

var accessFlags = map[string]ctl.Access{
	"read":        ctl.AccessRead,
	"write":       ctl.AccessWrite,
	"volatile":    ctl.AccessVolatile,
	"tlv_read":    ctl.AccessTLVRead,
	"tlv_write":   ctl.AccessTLVWrite,
	"tlv_command": ctl.AccessTLVCommand,
	"user":        ctl.AccessUser,
}

// AddElement creates a new element from the spec, assigns it the next numid
// and emits an ADD event. The returned identity carries the assigned numid.
func (p *Provider) AddElement(spec ElemSpec) (ctl.ElemID, error) {
	id, err := ctl.ParseElemID(spec.ID)
	if err != nil {
		return ctl.ElemID{}, err
	}
	id.Numid = 0

	typ := ctl.TypeInteger
	if spec.Type != "" {
		typ, err = ctl.ParseElemType(spec.Type)
		if err != nil {
			return ctl.ElemID{}, err
		}
	}

	count := spec.Count
	if count == 0 {
		count = 1
	}

	e := &element{
		id:    id,
		typ:   typ,
		count: count,
		min:   spec.Min,
		max:   spec.Max,
		step:  spec.Step,
	}

	switch typ {
	case ctl.TypeBoolean:
		e.min, e.max = 0, 1
	case ctl.TypeEnumerated:
		if len(spec.Items) == 0 {
			return ctl.ElemID{}, fmt.Errorf("%w: enumerated element without items", ctl.ErrInvalidValue)
		}
		e.items = make([]string, len(spec.Items))
		copy(e.items, spec.Items)
	}

	if len(spec.Access) == 0 {
		e.access = ctl.AccessReadWrite
	} else {
		for _, name := range spec.Access {
			bit, ok := accessFlags[name]
			if !ok {
				return ctl.ElemID{}, fmt.Errorf("%w: unknown access flag %q", ctl.ErrInvalidValue, name)
			}
			e.access |= bit
		}
	}

	if spec.TLV != "" {
		e.tlv, err = hex.DecodeString(spec.TLV)
		if err != nil {
			return ctl.ElemID{}, fmt.Errorf("%w: bad tlv hex: %v", ctl.ErrInvalidValue, err)
		}
		e.access |= ctl.AccessTLVRead
	}

	if typ == ctl.TypeBytes || typ == ctl.TypeIEC958 {
		e.bytes = make([]byte, count)
		if spec.Bytes != "" {
			initial, err := hex.DecodeString(spec.Bytes)
			if err != nil {
				return ctl.ElemID{}, fmt.Errorf("%w: bad bytes hex: %v", ctl.ErrInvalidValue, err)
			}
			copy(e.bytes, initial)
		}
	} else {
		e.ints = make([]int64, count)
		for i := 0; i < len(spec.Initial) && i < int(count); i++ {
			if err := e.validate(spec.Initial[i]); err != nil {
				return ctl.ElemID{}, err
			}
			e.ints[i] = spec.Initial[i]
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ctl.ElemID{}, ctl.ErrClosed
	}
	if p.find(ctl.ElemID{Iface: id.Iface, Device: id.Device, Subdevice: id.Subdevice, Name: id.Name, Index: id.Index}) != nil {
		return ctl.ElemID{}, fmt.Errorf("memctl: element %s already exists", id)
	}
	e.id.Numid = p.nextNumid
	p.nextNumid++
	p.elements = append(p.elements, e)
	p.pushEvent(ctl.EventAdd, e.id)
	p.logger.Debug("element added", "id", e.id.String(), "type", e.typ.String())
	return e.id, nil
}

// RemoveElement deletes an element and emits a REMOVE event carrying its
// last identity. Numids are never reused, so a removed and re-added element
// always gets a fresh one.
func (p *Provider) RemoveElement(id ctl.ElemID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ctl.ErrClosed
	}
	e := p.find(id)
	if e == nil {
		return ctl.ErrNotFound
	}
	for i := range p.elements {
		if p.elements[i] == e {
			p.elements = append(p.elements[:i], p.elements[i+1:]...)
			break
		}
	}
	p.pushEvent(ctl.EventRemove, e.id)
	p.logger.Debug("element removed", "id", e.id.String())
	return nil
}
