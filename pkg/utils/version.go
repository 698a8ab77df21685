// Package utils provides small one-off helpers that don't warrant their own
// package.
package utils

// Build identity, overridden at link time via -ldflags.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
