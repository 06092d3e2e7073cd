/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/friendsincode/breakplan/internal/config"
)

// FromConfig returns the S3 store when a bucket is configured, otherwise a
// filesystem store rooted at the export directory.
func FromConfig(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ObjectStore, error) {
	if !cfg.S3Enabled() {
		return NewFilesystemStore(cfg.ExportDir, logger), nil
	}
	return NewS3Store(ctx, S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		UsePathStyle:    cfg.S3UsePathStyle,
		Prefix:          "schedules",
	}, logger)
}
