// Package version exposes the process-wide version string.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionFile string

// defaultVersion is used if the embedded VERSION resource is empty or
// whitespace only (the file itself must exist for go:embed to build),
// mirroring the original's fallback when its packaging-metadata
// resource could not be found.
const defaultVersion = "unknown"

// String returns the build-time version string, trimmed of surrounding
// whitespace. Release tooling is expected to overwrite the VERSION file
// with a real tag before building; an unmodified checkout reports
// "unknown".
func String() string {
	v := strings.TrimSpace(versionFile)
	if v == "" {
		return defaultVersion
	}
	return v
}
