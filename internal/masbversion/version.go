// Package masbversion carries the build-time identifiers stamped into the
// masb binary via -ldflags: the Version/GitSHA/BuildTime trio reported by
// `masb version`.
package masbversion

var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the one-line banner printed by `masb version`.
func String() string {
	return "masb " + Version + " (git " + GitSHA + ", built " + BuildTime + ")"
}
