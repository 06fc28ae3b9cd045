// Package resolver discovers the newest published build from the remote
// build index. The set of builds is append-only and ordered by publish time,
// so the resolver trusts the index ordering and takes the first matching
// token instead of comparing versions itself.
package resolver
