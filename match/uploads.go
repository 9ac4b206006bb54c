// Copyright 2026 The HouseFinder Authors
// SPDX-License-Identifier: Apache-2.0

package match

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UploadStore persists uploaded images on the local filesystem so a search
// record can reference the exact bytes that were matched. Keys are opaque
// handles minted by Save.
type UploadStore struct {
	root string
}

// NewUploadStore creates a store rooted at the given directory.
func NewUploadStore(root string) *UploadStore {
	return &UploadStore{root: root}
}

// Fan out into two-character subdirectories to keep any single directory
// from accumulating every upload.
func (s *UploadStore) pathFor(key string, createParent bool) (string, error) {
	if len(key) < 2 || strings.ContainsAny(key, "/\\.") {
		return "", fmt.Errorf("invalid upload key %q", key)
	}

	parent := filepath.Join(s.root, key[:2])

	if createParent {
		if err := os.MkdirAll(parent, 0o700); err != nil {
			return "", fmt.Errorf("creating upload directory: %w", err)
		}
	}

	return filepath.Join(parent, key), nil
}

// Save stores the content and returns the key it was stored under. The
// returns are named so the deferred Close can fold its error in; a close
// failure on the write path means a possibly truncated upload.
func (s *UploadStore) Save(content io.Reader) (key string, err error) {
	key = uuid.NewString()

	path, err := s.pathFor(key, true)
	if err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing upload file: %w", cerr))
		}
	}()

	if _, err = io.Copy(f, content); err != nil {
		return "", fmt.Errorf("writing upload file: %w", err)
	}

	return key, nil
}

// Open retrieves a stored upload as an io.ReadCloser.
func (s *UploadStore) Open(key string) (io.ReadCloser, error) {
	path, err := s.pathFor(key, false)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading upload file: %w", err)
	}

	return f, nil
}

// Remove deletes a stored upload. Removing a key that is already gone is
// not an error.
func (s *UploadStore) Remove(key string) error {
	path, err := s.pathFor(key, false)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing upload file: %w", err)
	}

	return nil
}
