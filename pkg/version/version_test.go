package version_test

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/LeonardoBeccarini/agritech_dashboard/pkg/version"
)

func TestVersionString(t *testing.T) {
	expected := fmt.Sprintf("UNKNOWN (%s/%s). Build date: UNKNOWN", runtime.GOOS, runtime.GOARCH)
	got := version.VersionString()

	if got != expected {
		t.Errorf("Unexpected value, expected '%s', got '%s'", expected, got)
	}
}
