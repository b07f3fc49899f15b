package redo

// Version information for the redo module.
const (
	// Version is the current version of the redo module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)
