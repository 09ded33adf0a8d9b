package cli

import (
	"github.com/hupe1980/themesubst/internal/version"
)

// versionString is printed by --version. It is computed once at command
// construction; the build info does not change while the process runs.
func versionString() string {
	return version.GetInfo().String()
}
