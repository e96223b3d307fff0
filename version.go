// Package db2igo provides the version information for the db2i toolkit.
package db2igo

// Version is the current version of db2i-go.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
