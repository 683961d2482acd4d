// SPDX-License-Identifier: MIT

package jobs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/xgcurate/internal/epg"
	xglog "github.com/ManuGH/xgcurate/internal/log"
	"github.com/ManuGH/xgcurate/internal/playlist"
)

const artifactPerm = 0o644

// pendingFile is an artifact being written. Nothing is visible at the
// target path until CloseAtomicallyReplace succeeds.
type pendingFile interface {
	io.Writer
	CloseAtomicallyReplace() error
	Cleanup() error
}

// countingWriter tracks the bytes that reach the pending file.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// stagedArtifact is a fully written pending file waiting for commit.
type stagedArtifact struct {
	path    string
	size    int64
	pending pendingFile
}

// stage runs fill against a pending file for path. Nothing is visible at
// path until commit.
func stage(path string, fill func(w io.Writer) error) (*stagedArtifact, error) {
	pending, err := newPendingFile(path)
	if err != nil {
		return nil, fmt.Errorf("create pending file: %w", err)
	}

	cw := &countingWriter{w: pending}
	bw := bufio.NewWriterSize(cw, 64*1024)
	if err := fill(bw); err != nil {
		_ = pending.Cleanup()
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		_ = pending.Cleanup()
		return nil, fmt.Errorf("flush: %w", err)
	}
	return &stagedArtifact{path: path, size: cw.n, pending: pending}, nil
}

func (a *stagedArtifact) commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", a.path, err)
	}
	return nil
}

// discard removes an uncommitted pending file. After commit it is a no-op.
func (a *stagedArtifact) discard(ctx context.Context) {
	if a == nil {
		return
	}
	if err := a.pending.Cleanup(); err != nil {
		xglog.FromContext(ctx).Debug().Err(err).Str(xglog.FieldPath, a.path).Msg("cleanup pending file")
	}
}

// stagePlaylist renders the playlist artifact.
func stagePlaylist(path string, items []playlist.Item, opts playlist.Options) (*stagedArtifact, error) {
	a, err := stage(path, func(w io.Writer) error {
		return playlist.WriteM3U(w, items, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("write playlist %s: %w", path, err)
	}
	return a, nil
}

// stageGuide renders the guide artifact: channel records first, then the
// programme spools concatenated in the given order.
func stageGuide(path string, opts epg.WriterOptions, channels []epg.Channel, spools []string) (*stagedArtifact, error) {
	a, err := stage(path, func(w io.Writer) error {
		gw, err := epg.NewWriter(w, opts)
		if err != nil {
			return err
		}
		for i := range channels {
			if err := gw.WriteChannel(&channels[i]); err != nil {
				return errors.Join(err, gw.Close())
			}
		}
		for _, p := range spools {
			if err := appendSpool(gw, p); err != nil {
				return errors.Join(err, gw.Close())
			}
		}
		return gw.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("write guide %s: %w", path, err)
	}
	return a, nil
}

func appendSpool(gw *epg.Writer, path string) error {
	// #nosec G304 -- spool paths are created by this package
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open programme spool: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := gw.AppendProgrammes(f); err != nil {
		return fmt.Errorf("append programme spool: %w", err)
	}
	return nil
}
