package remap

import "errors"

var (
	// ErrInconsistentSources indicates the members of a merge group
	// disagree on type, access bits, value range or TLV contents, so no
	// single descriptor or blob can represent the virtual control.
	ErrInconsistentSources = errors.New("remap: merge sources are inconsistent")

	// ErrInvalidConfiguration indicates a rule set that cannot be built:
	// duplicate rename targets or sources, malformed channel maps,
	// unsupported element types, or byte merges with more than one source
	// channel.
	ErrInvalidConfiguration = errors.New("remap: invalid configuration")
)

// errNoMatch is the internal fall-through signal: the queried identity does
// not belong to the table that was asked. It drives the try-merge, try-sync,
// then plain-translation chain and never escapes the package.
var errNoMatch = errors.New("remap: no table match")
