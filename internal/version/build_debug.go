//go:build !release

package version

// DebugBuild reports whether the binary was built without the release tag.
// Debug builds honour the configured clock rate; release builds pin it to 1
// unless acceleration is force-enabled.
const DebugBuild = true
