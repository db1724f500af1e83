// Package id provides the opaque identifier generator shared across this
// project's job records, queue receipt handles, and local task handles
// (see job.New, queue's in-memory adapter, and tasklauncher.LocalLauncher) —
// anywhere a collision-resistant, sortable-by-creation-time string is
// needed without standing up a coordination service.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate creates a new unique identifier.
// Format: ls-<unix-seconds>-<8 hex chars>
// Example: ls-1701432000-a1b2c3d4
func Generate() string {
	timestamp := time.Now().Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		// Fallback to timestamp only if crypto/rand fails
		return fmt.Sprintf("ls-%d", timestamp)
	}
	return fmt.Sprintf("ls-%d-%s", timestamp, hex.EncodeToString(random))
}
