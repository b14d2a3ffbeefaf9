// Package version holds build metadata injected via ldflags:
//
//	-X github.com/kailas-cloud/stacfed/internal/version.Version=v1.2.0
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders "<component> <version> (<commit>, <date>)".
func String(component string) string {
	return fmt.Sprintf("%s %s (%s, %s)", component, Version, Commit, Date)
}

// UserAgent is the product token sent to upstream catalogs, e.g. "stacfed/v1.2.0".
// Catalog operators see which build is calling them.
func UserAgent(component string) string {
	return component + "/" + Version
}
