// Package selfupdate keeps the gamewarden binary itself current from a
// published release manifest, and produces that manifest for releases.
// The swap is checksum-verified and atomic; a failed apply restores the
// previous binary.
package selfupdate
