package ctl

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseElemID parses the conventional textual element identity, e.g.
//
//	iface=MIXER,name='PCM Playback Volume',index=1
//
// Recognised keys: numid, iface (or interface), name, index, device,
// subdevice. Names may be quoted with single or double quotes to protect
// embedded commas; unquoted names end at the next comma. Unset fields
// default to iface=MIXER and zero.
func ParseElemID(s string) (ElemID, error) {
	id := ElemID{Iface: IfaceMixer}
	if strings.TrimSpace(s) == "" {
		return id, fmt.Errorf("%w: empty identity", ErrInvalidID)
	}
	rest := s
	for rest != "" {
		rest = strings.TrimLeft(rest, " \t,")
		if rest == "" {
			break
		}
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return id, fmt.Errorf("%w: expected key=value near %q", ErrInvalidID, rest)
		}
		key := strings.TrimSpace(rest[:eq])
		rest = rest[eq+1:]

		var value string
		var err error
		value, rest, err = scanValue(rest)
		if err != nil {
			return id, err
		}

		switch strings.ToLower(key) {
		case "numid":
			n, err := parseUint(key, value)
			if err != nil {
				return id, err
			}
			id.Numid = n
		case "iface", "interface":
			iface, err := ParseIface(value)
			if err != nil {
				return id, err
			}
			id.Iface = iface
		case "name":
			id.Name = value
		case "index":
			n, err := parseUint(key, value)
			if err != nil {
				return id, err
			}
			id.Index = n
		case "device":
			n, err := parseUint(key, value)
			if err != nil {
				return id, err
			}
			id.Device = n
		case "subdevice":
			n, err := parseUint(key, value)
			if err != nil {
				return id, err
			}
			id.Subdevice = n
		default:
			return id, fmt.Errorf("%w: unknown key %q", ErrInvalidID, key)
		}
	}
	return id, nil
}

// scanValue consumes one value from the front of s, honouring quotes, and
// returns the value plus the unconsumed remainder.
func scanValue(s string) (value, rest string, err error) {
	if s == "" {
		return "", "", nil
	}
	if s[0] == '\'' || s[0] == '"' {
		quote := s[0]
		end := strings.IndexByte(s[1:], quote)
		if end < 0 {
			return "", "", fmt.Errorf("%w: unterminated quote", ErrInvalidID)
		}
		return s[1 : 1+end], s[2+end:], nil
	}
	if comma := strings.IndexByte(s, ','); comma >= 0 {
		return strings.TrimSpace(s[:comma]), s[comma:], nil
	}
	return strings.TrimSpace(s), "", nil
}

func parseUint(key, value string) (uint32, error) {
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s value %q", ErrInvalidID, key, value)
	}
	return uint32(n), nil
}

// String renders the identity in the conventional textual form. The numid is
// included only when assigned; device and subdevice only when non-zero.
func (id ElemID) String() string {
	var b strings.Builder
	if id.Numid != 0 {
		fmt.Fprintf(&b, "numid=%d,", id.Numid)
	}
	fmt.Fprintf(&b, "iface=%s,name='%s'", id.Iface, id.Name)
	if id.Index != 0 {
		fmt.Fprintf(&b, ",index=%d", id.Index)
	}
	if id.Device != 0 {
		fmt.Fprintf(&b, ",device=%d", id.Device)
	}
	if id.Subdevice != 0 {
		fmt.Fprintf(&b, ",subdevice=%d", id.Subdevice)
	}
	return b.String()
}
