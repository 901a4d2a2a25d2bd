// Package version exposes the build version of deskmcp.
package version

// Version is overridden at build time with
// -ldflags "-X github.com/deskmcp/deskmcp/pkg/version.Version=v1.2.3"
var Version = "dev"

// GetVersion returns the version of the running binary.
func GetVersion() string {
	if Version == "" {
		return "dev"
	}
	return Version
}
