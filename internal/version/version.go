// Package version holds build metadata injected with ldflags.
package version

// Version contains the application version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/qbdeploy/internal/version.Version=v1.0.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	if GitCommit == "unknown" && BuildTime == "unknown" {
		return "qbdeploy " + Version
	}
	return "qbdeploy " + Version + " (" + GitCommit + ", built " + BuildTime + ")"
}
