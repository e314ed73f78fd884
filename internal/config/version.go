package config

import "fmt"

// CurrentVersion is the configuration file format this build reads.
const CurrentVersion = 1

// VersionError describes a configuration version mismatch.
type VersionError struct {
	Version int
	Current int
}

func (e *VersionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Version > e.Current {
		return fmt.Sprintf("config version %d is newer than this build (current: %d); upgrade agentcore to continue", e.Version, e.Current)
	}
	return fmt.Sprintf("config version %d is unsupported (current: %d); set `version: %d`", e.Version, e.Current, e.Current)
}

// ValidateVersion ensures the provided config version is supported.
func ValidateVersion(version int) error {
	if version != CurrentVersion {
		return &VersionError{Version: version, Current: CurrentVersion}
	}
	return nil
}
