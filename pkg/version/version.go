package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is set at build time via -ldflags.
	Version = "UNKNOWN"

	// BuildDate is set at build time via -ldflags.
	BuildDate = "UNKNOWN"
)

// BinaryName is the name of the compiled binary.
const BinaryName = "agritech"

// VersionString returns the version along with the platform and build date.
func VersionString() string {
	return fmt.Sprintf("%s (%s/%s). Build date: %s", Version, runtime.GOOS, runtime.GOARCH, BuildDate)
}
