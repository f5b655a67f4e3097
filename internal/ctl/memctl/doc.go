// Package memctl provides an in-memory ctl.Provider: a mutex-guarded element
// table with stable enumeration order, value storage per element type, lock
// ownership, TLV blobs and an event queue with blocking and non-blocking
// reads.
//
// It backs the daemon (seeded from a YAML definitions file) and the test
// suites for the remap proxy, which need a child provider whose contents and
// events they fully control.
package memctl
