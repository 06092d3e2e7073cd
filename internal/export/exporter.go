/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/breakplan/internal/storage"
)

// CopyKey names the timestamped copy of a master schedule.
func CopyKey(t time.Time) string {
	return "master_schedule_" + t.Format("20060102_150405") + ".csv"
}

// Exporter saves timestamped master schedule copies to an object store.
type Exporter struct {
	store  storage.ObjectStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewExporter creates an exporter writing to store.
func NewExporter(store storage.ObjectStore, logger zerolog.Logger) *Exporter {
	return &Exporter{
		store:  store,
		logger: logger.With().Str("component", "exporter").Logger(),
		now:    time.Now,
	}
}

// SaveCopy renders rows as CSV and stores them under CopyKey. It returns the
// store location of the copy.
func (e *Exporter) SaveCopy(ctx context.Context, rows []MasterRow) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return "", fmt.Errorf("render master schedule: %w", err)
	}

	key := CopyKey(e.now())
	if err := e.store.Put(ctx, key, buf.Bytes()); err != nil {
		return "", fmt.Errorf("save master copy: %w", err)
	}

	location := e.store.Location(key)
	e.logger.Info().Str("location", location).Int("rows", len(rows)).Msg("master schedule copy saved")
	return location, nil
}
