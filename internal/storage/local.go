package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore keeps rendered exports in a local output directory and does not
// publish them anywhere.
type LocalStore struct {
	outDir string
}

// NewLocalStore creates a LocalStore rooted at outDir. If outDir is empty,
// a ripplecut directory under os.TempDir() is used. The directory is created
// if it doesn't exist.
func NewLocalStore(outDir string) (*LocalStore, error) {
	if outDir == "" {
		outDir = filepath.Join(os.TempDir(), "ripplecut", "exports")
	}

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &LocalStore{outDir: outDir}, nil
}

// OutDir returns the output directory path.
func (s *LocalStore) OutDir() string {
	return s.outDir
}

// OutputPath allocates the render file path for a session. Renders are named
// by session so Discard can find them without bookkeeping.
func (s *LocalStore) OutputPath(sessionID, ext string) string {
	return filepath.Join(s.outDir, sessionID+"_export"+ext)
}

// Discard removes all rendered files belonging to a session. Re-exports with
// a different source extension leave siblings behind, so the whole
// `<id>_export.*` family is matched.
func (s *LocalStore) Discard(ctx context.Context, sessionID string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	matches, err := filepath.Glob(filepath.Join(s.outDir, sessionID+"_export*"))
	if err != nil {
		return fmt.Errorf("list renders: %w", err)
	}

	var firstErr error
	for _, p := range matches {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove render %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Publish is not supported by LocalStore and returns ErrPublishNotConfigured.
func (s *LocalStore) Publish(_ context.Context, _, _ string) (string, error) {
	return "", ErrPublishNotConfigured
}
