// Package ctl defines the hierarchical named-control domain model: element
// identities, descriptors, values, change events and the Provider contract
// shared by concrete backends and stacking proxies.
//
// An element is addressed either by its full identity (interface, device,
// subdevice, name, index) or by a numid, a numeric shortcut minted by
// whichever side first resolves the element. Identities have a conventional
// textual form handled by ParseElemID and ElemID.String:
//
//	numid=12,iface=MIXER,name='Master Playback Volume',index=1
//
// Subpackage memctl provides an in-memory Provider; package remap builds a
// virtual namespace on top of any Provider.
package ctl
