// Package install reconciles the on-disk server artifact: it clears the
// stale payload, unpacks a downloaded archive into the install target and
// fixes ownership of the resulting tree. At any instant the target is
// either old, absent or new, never a mix for the same logical file.
package install
