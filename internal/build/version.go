package build

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// These variables are overridden at link time for release builds.
var (
	// Commit is the full git commit hash, set via -ldflags.
	Commit string

	// CommitHash is the short commit hash embedded by the VCS, populated
	// from build info when available.
	CommitHash string

	// GoVersion is the Go toolchain version the binary was built with.
	GoVersion string

	// RawTags is the comma separated list of build tags.
	RawTags string
)

const (
	appMajor uint = 0
	appMinor uint = 3
	appPatch uint = 0

	// appPreRelease should only contain characters from the semantic
	// versioning alphanumeric set.
	appPreRelease = "beta"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	GoVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			CommitHash = setting.Value

		case "-tags":
			RawTags = setting.Value
		}
	}
}

// Version returns the application version as a properly formed string per the
// semantic versioning 2.0.0 spec.
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if appPreRelease != "" {
		version = fmt.Sprintf("%s-%s", version, appPreRelease)
	}

	return version
}

// Tags returns the build tags compiled into this binary.
func Tags() []string {
	if RawTags == "" {
		return nil
	}

	return strings.Split(RawTags, ",")
}
