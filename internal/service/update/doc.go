// Package update sequences a single update run of the managed game server:
// stop the service, clear the stale payload, resolve and download the
// newest build, extract it, fix ownership and restart the service.
//
// Failures inside the fetch/extract window trigger a best-effort service
// restart with whatever payload remains on disk; once the old payload has
// been replaced there is nothing to fall back to and failures surface
// immediately. Every run produces exactly one Outcome.
package update
