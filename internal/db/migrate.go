/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/breakplan/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.BreakRule{},
		&models.ScheduleRun{},
		&models.RunRow{},
		&models.RunLog{},
		&models.AuditLog{},
	); err != nil {
		return err
	}

	if err := applyPostgresBreakWindowGuard(database); err != nil {
		return err
	}

	return nil
}

// applyPostgresBreakWindowGuard rejects stored rules whose window ends before
// it starts. Rules without a window stay storable.
func applyPostgresBreakWindowGuard(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	stmt := `
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1 FROM pg_constraint WHERE conname = 'chk_break_rules_window'
  ) THEN
    ALTER TABLE break_rules
      ADD CONSTRAINT chk_break_rules_window
      CHECK (break_start IS NULL OR break_end IS NULL OR break_end > break_start);
  END IF;
END;
$$;
`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres break window guard: %w", err)
	}

	return nil
}
