// Package version carries the build version, stamped at link time via
// -ldflags "-X github.com/gatepass/gatepass/internal/version.Version=v1.2.3".
package version

// Version is the release version of the binary.
var Version = "0.1.0-dev"
