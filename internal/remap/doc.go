// Package remap virtualizes a ctl.Provider's control namespace: elements can
// be published under different identities, several elements can be merged
// into one virtual control, and groups of elements can be tied together so a
// write to one is replayed to all.
//
// The proxy keeps four structures per handle: the rename table, the numid
// ledger pairing child numids with the numids handed to the application, the
// merge groups and the sync groups. Operations try the merge table, then the
// sync table, then fall through to plain passthrough with identity and numid
// translation:
//
//	application
//	    |            Proxy
//	    v   +------------------------+
//	 op --> | merge? sync? / rename  | --> child ctl.Provider
//	        |    numid ledger        |
//	        +------------------------+
//
// Virtual controls receive numids minted at construction, before any child
// element is paired, so child numids that collide are pushed to fresh
// application numids. Child events are translated the same way and fan out
// to the merge groups and sync siblings built on the originating element.
//
// A Proxy is as concurrency-safe as the provider contract demands and no
// more: one caller at a time, typically the daemon's gateway loop.
package remap
