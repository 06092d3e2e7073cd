/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audit records rule changes and schedule run outcomes from the event bus.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/breakplan/internal/events"
	"github.com/friendsincode/breakplan/internal/models"
)

// Bus is the subscription side of an event bus.
type Bus interface {
	Subscribe(eventType events.EventType) events.Subscriber
	Unsubscribe(eventType events.EventType, sub events.Subscriber)
}

// actions maps each audited event to its action and resource.
var actions = map[events.EventType]struct {
	action       models.AuditAction
	resourceType string
	resourceKey  string
}{
	events.EventRulesUpdated: {models.AuditActionRuleUpdate, "break_rule", "dept_id"},
	events.EventRulesDeleted: {models.AuditActionRuleDelete, "break_rule", "dept_id"},
	events.EventRunCompleted: {models.AuditActionRunComplete, "schedule_run", "run_id"},
	events.EventRunFailed:    {models.AuditActionRunFail, "schedule_run", "run_id"},
}

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Start subscribes to audited events and stores them until ctx is done.
func (s *Service) Start(ctx context.Context) {
	ruleUpdated := s.bus.Subscribe(events.EventRulesUpdated)
	ruleDeleted := s.bus.Subscribe(events.EventRulesDeleted)
	runCompleted := s.bus.Subscribe(events.EventRunCompleted)
	runFailed := s.bus.Subscribe(events.EventRunFailed)

	defer func() {
		s.bus.Unsubscribe(events.EventRulesUpdated, ruleUpdated)
		s.bus.Unsubscribe(events.EventRulesDeleted, ruleDeleted)
		s.bus.Unsubscribe(events.EventRunCompleted, runCompleted)
		s.bus.Unsubscribe(events.EventRunFailed, runFailed)
	}()

	s.logger.Info().Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return
		case payload := <-ruleUpdated:
			s.logAuditEntry(ctx, events.EventRulesUpdated, payload)
		case payload := <-ruleDeleted:
			s.logAuditEntry(ctx, events.EventRulesDeleted, payload)
		case payload := <-runCompleted:
			s.logAuditEntry(ctx, events.EventRunCompleted, payload)
		case payload := <-runFailed:
			s.logAuditEntry(ctx, events.EventRunFailed, payload)
		}
	}
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, eventType events.EventType, payload events.Payload) {
	if payload == nil {
		return
	}
	mapping, ok := actions[eventType]
	if !ok {
		return
	}

	entry := &models.AuditLog{
		Action:       mapping.action,
		ResourceType: mapping.resourceType,
		Details:      make(map[string]any),
	}
	if id, ok := payload[mapping.resourceKey].(string); ok {
		entry.ResourceID = id
	}
	if ipAddress, ok := payload["ip_address"].(string); ok {
		entry.IPAddress = ipAddress
	}
	if userAgent, ok := payload["user_agent"].(string); ok {
		entry.UserAgent = userAgent
	}

	for k, v := range payload {
		switch k {
		case mapping.resourceKey, "ip_address", "user_agent":
		default:
			entry.Details[k] = v
		}
	}

	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(entry.Action)).
			Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly.
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	now := time.Now()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("id", entry.ID).
		Msg("audit entry logged")

	return nil
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	Action     *models.AuditAction
	ResourceID *string
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}

// Query retrieves audit logs with filters, most recent first, and the total
// number of matching entries.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.ResourceID != nil {
		query = query.Where("resource_id = ?", *filters.ResourceID)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	query = query.Limit(limit)
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
