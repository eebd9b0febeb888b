package version

var (
	// Version is the current application version.
	// It is populated by the build system (ldflags). Persisted clock state
	// written by a different version is discarded on startup.
	Version = "v0.4.2"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)
