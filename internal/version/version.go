// Package version holds the build version, injected at link time.
package version

// Version is overridden via -ldflags at build time.
var Version = "dev"
