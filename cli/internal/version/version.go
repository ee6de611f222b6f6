// Package version holds the CLI version string. Default is "dev"; release
// builds can set it via: go build -ldflags "-X convcommit/cli/internal/version.Version=v1.0.0"
package version

// Version is the convcommit version. Set at build time for releases.
var Version = "dev"

// Commit is the short git commit hash. Set at build time for dev builds via ldflags.
var Commit = ""

// String returns the version string for --version.
// For dev builds with Commit set, returns "dev (abc1234)"; otherwise returns Version.
func String() string {
	if Version != "dev" || Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}

// UserAgent is the User-Agent sent to the completion endpoint.
func UserAgent() string {
	if Version != "dev" || Commit == "" {
		return "convcommit/" + Version
	}
	return "convcommit/" + Version + "+" + Commit
}
