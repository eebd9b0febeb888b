//go:build release

package version

// DebugBuild reports whether the binary was built without the release tag.
const DebugBuild = false
