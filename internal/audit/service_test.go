package audit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/breakplan/internal/events"
	"github.com/friendsincode/breakplan/internal/models"
)

func newTestService(t *testing.T, bus Bus) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewService(db, bus, zerolog.Nop())
}

func TestLogAuditEntryMapsPayload(t *testing.T) {
	svc := newTestService(t, events.NewBus())
	ctx := context.Background()

	svc.logAuditEntry(ctx, events.EventRulesUpdated, events.Payload{
		"dept_id":    "Cut-Up",
		"rule_id":    "r-1",
		"ip_address": "10.0.0.1",
	})
	svc.logAuditEntry(ctx, events.EventRunFailed, events.Payload{
		"run_id": "run-1",
		"stage":  "ValidateOverlaps",
	})

	logs, total, err := svc.Query(ctx, QueryFilters{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 2 || len(logs) != 2 {
		t.Fatalf("expected 2 entries, got total=%d len=%d", total, len(logs))
	}

	action := models.AuditActionRuleUpdate
	logs, _, err = svc.Query(ctx, QueryFilters{Action: &action})
	if err != nil {
		t.Fatalf("query by action: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 rule update, got %d", len(logs))
	}
	got := logs[0]
	if got.ResourceType != "break_rule" || got.ResourceID != "Cut-Up" || got.IPAddress != "10.0.0.1" {
		t.Fatalf("unexpected entry %+v", got)
	}
	if got.Details["rule_id"] != "r-1" {
		t.Fatalf("expected rule_id in details, got %v", got.Details)
	}
	if _, ok := got.Details["dept_id"]; ok {
		t.Fatal("resource key should not be repeated in details")
	}

	runID := "run-1"
	logs, _, err = svc.Query(ctx, QueryFilters{ResourceID: &runID})
	if err != nil {
		t.Fatalf("query by resource: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != models.AuditActionRunFail {
		t.Fatalf("unexpected run entries %+v", logs)
	}
}

func TestQueryPagination(t *testing.T) {
	svc := newTestService(t, events.NewBus())
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := svc.Log(ctx, &models.AuditLog{
			Action:    models.AuditActionRunComplete,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	logs, total, err := svc.Query(ctx, QueryFilters{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 5 || len(logs) != 2 {
		t.Fatalf("expected total=5 len=2, got total=%d len=%d", total, len(logs))
	}
	if !logs[0].Timestamp.Equal(base.Add(3 * time.Minute)) {
		t.Fatalf("expected newest-first order, got %v", logs[0].Timestamp)
	}

	start := base.Add(3 * time.Minute)
	_, total, err = svc.Query(ctx, QueryFilters{StartTime: &start})
	if err != nil {
		t.Fatalf("query by time: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 entries from %v, got %d", start, total)
	}
}

func TestStartRecordsPublishedEvents(t *testing.T) {
	bus := events.NewBus()
	svc := newTestService(t, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bus.Publish(events.EventRulesDeleted, events.Payload{"dept_id": "Bagging"})
		time.Sleep(10 * time.Millisecond)

		action := models.AuditActionRuleDelete
		_, total, err := svc.Query(context.Background(), QueryFilters{Action: &action})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if total > 0 {
			return
		}
	}
	t.Fatal("published event was never recorded")
}
