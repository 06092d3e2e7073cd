/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/breakplan/internal/models"
)

// ErrNotFound is returned when a rule or run does not exist.
var ErrNotFound = errors.New("not found")

// Store persists break rules and schedule runs.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates a store on an open, migrated database.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "store").Logger()}
}

// ListRules returns every stored rule ordered by department.
func (s *Store) ListRules(ctx context.Context) ([]models.BreakRule, error) {
	var rules []models.BreakRule
	if err := s.db.WithContext(ctx).Order("dept_id").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list break rules: %w", err)
	}
	return rules, nil
}

// GetRule returns the rule of one department.
func (s *Store) GetRule(ctx context.Context, deptID string) (*models.BreakRule, error) {
	var rule models.BreakRule
	err := s.db.WithContext(ctx).Where("dept_id = ?", deptID).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get break rule %s: %w", deptID, err)
	}
	return &rule, nil
}

// UpsertRule creates or replaces the rule of rule.DeptID. The stored ID and
// creation time are kept on replace; rule is updated with the stored values.
func (s *Store) UpsertRule(ctx context.Context, rule *models.BreakRule) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertRule(tx, rule)
	})
}

func upsertRule(tx *gorm.DB, rule *models.BreakRule) error {
	var existing models.BreakRule
	err := tx.Where("dept_id = ?", rule.DeptID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rule.ID = uuid.NewString()
		if err := tx.Create(rule).Error; err != nil {
			return fmt.Errorf("create break rule %s: %w", rule.DeptID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("find break rule %s: %w", rule.DeptID, err)
	}

	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt
	// Save writes nil pointers too, so cleared optional fields are cleared in the row.
	if err := tx.Save(rule).Error; err != nil {
		return fmt.Errorf("update break rule %s: %w", rule.DeptID, err)
	}
	return nil
}

// SeedRules upserts every rule in one transaction.
func (s *Store) SeedRules(ctx context.Context, rules []models.BreakRule) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rules {
			if err := upsertRule(tx, &rules[i]); err != nil {
				return err
			}
		}
		s.logger.Info().Int("count", len(rules)).Msg("break rules seeded")
		return nil
	})
}

// DeleteRule removes the rule of one department.
func (s *Store) DeleteRule(ctx context.Context, deptID string) error {
	res := s.db.WithContext(ctx).Where("dept_id = ?", deptID).Delete(&models.BreakRule{})
	if res.Error != nil {
		return fmt.Errorf("delete break rule %s: %w", deptID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveRun stores a run with its rows and log lines.
func (s *Store) SaveRun(ctx context.Context, run *models.ScheduleRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	for i := range run.Rows {
		run.Rows[i].RunID = run.ID
		if run.Rows[i].ID == "" {
			run.Rows[i].ID = uuid.NewString()
		}
	}
	for i := range run.Logs {
		run.Logs[i].RunID = run.ID
		if run.Logs[i].ID == "" {
			run.Logs[i].ID = uuid.NewString()
		}
	}

	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("save schedule run: %w", err)
	}
	s.logger.Debug().
		Str("run_id", run.ID).
		Str("status", string(run.Status)).
		Int("rows", len(run.Rows)).
		Int("logs", len(run.Logs)).
		Msg("schedule run saved")
	return nil
}

// GetRun loads a run with rows and log lines in their original order.
func (s *Store) GetRun(ctx context.Context, id string) (*models.ScheduleRun, error) {
	var run models.ScheduleRun
	err := s.db.WithContext(ctx).
		Preload("Rows", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Logs", func(db *gorm.DB) *gorm.DB { return db.Order("sequence") }).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs without rows or logs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.ScheduleRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []models.ScheduleRun
	if err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list schedule runs: %w", err)
	}
	return runs, nil
}
