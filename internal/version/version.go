// Package version holds build metadata for the mend binary.
package version

// Set at build time via -ldflags (see the magefile's Build target). The
// defaults apply to plain `go build` and `go run`.
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)
