// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Processing constants
const (
	// KeeperConcurrency is the number of group members decoded in parallel when
	// choosing the sharpest photo to keep
	KeeperConcurrency = 4
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for SSE subscriber channels
	EventChannelBuffer = 100
)

// Scan session constants
const (
	// MaxScanSessions is the number of duplicate-check sessions the server keeps in memory
	MaxScanSessions = 16

	// MaxRequestBodySize bounds JSON request bodies (1MB)
	MaxRequestBodySize = 1 << 20
)
