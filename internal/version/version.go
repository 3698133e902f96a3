// Package version provides build version information for the application.
// It is separate so both cli and host can import it.
package version

// Version is the build version string, set by ldflags during build.
// Format: vX.Y.Z or vX.Y.Z-dev for development builds.
var Version = "v2.6.0-dev"

// BuildTime is the build timestamp, set by ldflags during build.
var BuildTime = "unknown"
