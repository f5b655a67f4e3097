package ctl

// ElemValue carries the value payload for one element. Numeric types
// (boolean, integer, integer64, enumerated) use Ints, one entry per channel;
// bytes and IEC958 payloads use Bytes. The element's descriptor decides
// which side is meaningful.
type ElemValue struct {
	ID    ElemID  `json:"id"`
	Ints  []int64 `json:"ints,omitempty"`
	Bytes []byte  `json:"bytes,omitempty"`
}

// Clone returns an independent copy of the value.
func (v *ElemValue) Clone() *ElemValue {
	if v == nil {
		return nil
	}
	cpy := &ElemValue{ID: v.ID}
	if v.Ints != nil {
		cpy.Ints = make([]int64, len(v.Ints))
		copy(cpy.Ints, v.Ints)
	}
	if v.Bytes != nil {
		cpy.Bytes = make([]byte, len(v.Bytes))
		copy(cpy.Bytes, v.Bytes)
	}
	return cpy
}

// Int returns the numeric value of channel ch, or 0 when out of range.
func (v *ElemValue) Int(ch int) int64 {
	if ch < 0 || ch >= len(v.Ints) {
		return 0
	}
	return v.Ints[ch]
}

// SetInt stores val into channel ch, growing Ints as needed.
func (v *ElemValue) SetInt(ch int, val int64) {
	if ch < 0 {
		return
	}
	for len(v.Ints) <= ch {
		v.Ints = append(v.Ints, 0)
	}
	v.Ints[ch] = val
}

// Bool interprets channel ch as a boolean.
func (v *ElemValue) Bool(ch int) bool { return v.Int(ch) != 0 }

// SetBool stores a boolean into channel ch.
func (v *ElemValue) SetBool(ch int, val bool) {
	var n int64
	if val {
		n = 1
	}
	v.SetInt(ch, n)
}

// SamePayload reports whether two values carry identical channel data.
// Identities are not compared.
func (v *ElemValue) SamePayload(other *ElemValue) bool {
	if len(v.Ints) != len(other.Ints) || len(v.Bytes) != len(other.Bytes) {
		return false
	}
	for i := range v.Ints {
		if v.Ints[i] != other.Ints[i] {
			return false
		}
	}
	for i := range v.Bytes {
		if v.Bytes[i] != other.Bytes[i] {
			return false
		}
	}
	return true
}

// Clear drops the payload while keeping the identity.
func (v *ElemValue) Clear() {
	v.Ints = nil
	v.Bytes = nil
}
