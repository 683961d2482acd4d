// SPDX-License-Identifier: MIT

//go:build windows

package jobs

import (
	"fmt"
	"os"
	"path/filepath"
)

// tempPending is a temp file + rename. Windows has no fsync-before-rename
// guarantee, so the replacement is best-effort atomic.
type tempPending struct {
	*os.File
	target string
	done   bool
}

func newPendingFile(path string) (pendingFile, error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".xgcurate-*.tmp")
	if err != nil {
		return nil, err
	}
	return &tempPending{File: f, target: path}, nil
}

func (p *tempPending) CloseAtomicallyReplace() error {
	if err := p.Sync(); err != nil {
		return err
	}
	// Close before rename (Windows requires this)
	if err := p.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(p.Name(), p.target); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	p.done = true
	return nil
}

func (p *tempPending) Cleanup() error {
	if p.done {
		return nil
	}
	p.done = true
	_ = p.Close()
	return os.Remove(p.Name())
}
