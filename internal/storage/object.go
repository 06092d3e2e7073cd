/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package storage keeps exported schedule files in a local directory or an
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("object not found")

// ObjectStore abstracts object storage operations.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Location describes where key is stored, for logs and CLI output.
	Location(key string) string
}

// cleanKey normalises a slash-separated key and rejects keys escaping the
// store root.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}
