// Package sysctl exposes the managed game server unit as a Controller with
// synchronous stop/start/status semantics, implemented over the host
// service manager.
package sysctl
