// Package version holds build-time identification, set via -ldflags
// the way the teacher's cmd/helix build does.
package version

// Version, Commit and BuildDate are overridden at build time with
// -ldflags "-X github.com/driftwm/drift/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// String renders a one-line "0.1.0 (abc1234, 2026-07-30)" form.
func String() string {
	return Version + " (" + Commit + ", " + BuildDate + ")"
}
