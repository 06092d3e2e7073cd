/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

const (
	AuditActionRuleUpdate  AuditAction = "rule.update"
	AuditActionRuleDelete  AuditAction = "rule.delete"
	AuditActionRunComplete AuditAction = "run.complete"
	AuditActionRunFail     AuditAction = "run.fail"
)

// AuditLog records rule changes and schedule run outcomes.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp    time.Time      `gorm:"index:idx_audit_timestamp;not null" json:"timestamp"`
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null" json:"action"`
	ResourceType string         `gorm:"type:varchar(64)" json:"resource_type"` // "break_rule", "schedule_run"
	ResourceID   string         `gorm:"type:varchar(128);index:idx_audit_resource" json:"resource_id"`
	Details      map[string]any `gorm:"type:text;serializer:json" json:"details,omitempty"`
	IPAddress    string         `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent    string         `gorm:"type:varchar(512)" json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
