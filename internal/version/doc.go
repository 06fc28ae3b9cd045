// Package version exposes the gamewarden binary's build metadata, injected
// via ldflags, together with a cobra subcommand to print it. The release
// string also drives the self-update version comparison.
package version
