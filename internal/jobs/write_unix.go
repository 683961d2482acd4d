// SPDX-License-Identifier: MIT

//go:build !windows

package jobs

import (
	"github.com/google/renameio/v2"
)

// newPendingFile creates a renameio pending file next to path: temp file,
// fsync and atomic rename on commit, removal on cleanup.
func newPendingFile(path string) (pendingFile, error) {
	return renameio.NewPendingFile(path, renameio.WithPermissions(artifactPerm))
}
