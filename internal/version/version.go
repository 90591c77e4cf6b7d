// Package version holds build metadata set at link time.
package version

// Version is the application version, overridden via
// -ldflags "-X github.com/Override92/tid3/internal/version.Version=...".
var Version = "dev"

// UserAgent returns the User-Agent string sent to external metadata APIs.
func UserAgent() string {
	return "tid3/" + Version + " (https://github.com/Override92/tid3)"
}
