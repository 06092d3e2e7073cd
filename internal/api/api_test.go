package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/breakplan/internal/db"
	"github.com/friendsincode/breakplan/internal/events"
	"github.com/friendsincode/breakplan/internal/export"
	"github.com/friendsincode/breakplan/internal/models"
	"github.com/friendsincode/breakplan/internal/storage"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(database) })
	return db.NewStore(database, zerolog.Nop())
}

func newTestRouter(a *API) http.Handler {
	r := chi.NewRouter()
	a.Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func expectEvent(t *testing.T, sub events.Subscriber) events.Payload {
	t.Helper()
	select {
	case payload := <-sub:
		return payload
	default:
		t.Fatal("expected an event to be published")
		return nil
	}
}

const cutUpRun = `{
	"departments": {
		"Cut-Up": [
			{"EmployeeID": "E2", "Name": "bob", "Station": "Line 1", "StartTime": "06:00", "EndTime": "14:00"},
			{"EmployeeID": "E1", "Name": "Ann", "Station": "Line 1", "StartTime": "06:00", "EndTime": "14:00"}
		]
	},
	"rules": [
		{"dept_id": "Cut-Up", "break_start": "08:00", "break_end": "08:30", "batch_size": 1}
	]
}`

func TestScheduleRunSuccess(t *testing.T) {
	store := newTestStore(t)
	bus := events.NewBus()
	completed := bus.Subscribe(events.EventRunCompleted)
	objects := storage.NewFilesystemStore(t.TempDir(), zerolog.Nop())

	a := New(Deps{
		Store:    store,
		Bus:      bus,
		Exporter: export.NewExporter(objects, zerolog.Nop()),
	}, zerolog.Nop())
	h := newTestRouter(a)

	rr := do(t, h, http.MethodPost, "/api/v1/schedule/run", cutUpRun)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp scheduleRunResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.RunID == "" {
		t.Fatal("expected the run to be persisted")
	}
	if !strings.Contains(resp.Copy, "master_schedule_") {
		t.Fatalf("unexpected copy location %q", resp.Copy)
	}
	if len(resp.Master) != 2 || resp.Master[0].Name != "Ann" {
		t.Fatalf("expected master sorted by name, got %+v", resp.Master)
	}
	if resp.Master[0].Breaks != "08:00-08:15" || resp.Master[1].Breaks != "08:15-08:30" {
		t.Fatalf("unexpected break columns: %q, %q", resp.Master[0].Breaks, resp.Master[1].Breaks)
	}

	payload := expectEvent(t, completed)
	if payload["run_id"] != resp.RunID {
		t.Fatalf("event run_id = %v, want %s", payload["run_id"], resp.RunID)
	}

	rr = do(t, h, http.MethodGet, "/api/v1/runs/"+resp.RunID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for stored run, got %d", rr.Code)
	}
	var run models.ScheduleRun
	if err := json.NewDecoder(rr.Body).Decode(&run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.Status != models.RunSucceeded || len(run.Rows) != 2 {
		t.Fatalf("unexpected stored run: status=%s rows=%d", run.Status, len(run.Rows))
	}
	if len(run.Logs) == 0 {
		t.Fatal("expected run log lines to be stored")
	}
}

func TestScheduleRunFailures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErrors int
		wantFirst  string
	}{
		{
			name:       "empty input",
			body:       `{"departments": {}, "rules": []}`,
			wantErrors: 1,
			wantFirst:  "LoadInputs: no department input provided.",
		},
		{
			name: "duplicate rows",
			body: `{"departments": {"Tray Pack": [
				{"EmployeeID": "E1", "Station": "T1", "StartTime": "06:00", "EndTime": "14:00"},
				{"EmployeeID": "E1", "Station": "T1", "StartTime": "06:00", "EndTime": "14:00"}
			]}, "rules": []}`,
			wantErrors: 5,
			wantFirst:  "LoadInputs: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := events.NewBus()
			failed := bus.Subscribe(events.EventRunFailed)
			h := newTestRouter(New(Deps{Store: newTestStore(t), Bus: bus}, zerolog.Nop()))

			rr := do(t, h, http.MethodPost, "/api/v1/schedule/run", tt.body)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
			}

			var resp scheduleRunResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Success || resp.Master != nil {
				t.Fatalf("failed run must not carry a schedule: %+v", resp)
			}
			if len(resp.Errors) != tt.wantErrors {
				t.Fatalf("expected %d errors, got %v", tt.wantErrors, resp.Errors)
			}
			if !strings.HasPrefix(resp.Errors[0], tt.wantFirst) {
				t.Fatalf("first error = %q, want prefix %q", resp.Errors[0], tt.wantFirst)
			}
			expectEvent(t, failed)
		})
	}
}

func TestScheduleRunRejectsBadBody(t *testing.T) {
	h := newTestRouter(New(Deps{}, zerolog.Nop()))

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `{departments`},
		{name: "bad time", body: `{"departments": {"A": [{"EmployeeID": "E1", "StartTime": "noon"}]}}`},
		{name: "nested value", body: `{"departments": {"A": [{"EmployeeID": {"id": 1}}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/v1/schedule/run", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestScheduleRunUsesStoredRules(t *testing.T) {
	store := newTestStore(t)
	h := newTestRouter(New(Deps{Store: store}, zerolog.Nop()))

	rr := do(t, h, http.MethodPut, "/api/v1/break-rules/Cut-Up",
		`{"break_start": "08:00", "break_end": "08:30", "batch_count": 2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	body := `{"departments": {"Cut-Up": [
		{"EmployeeID": "E1", "Station": "L1", "StartTime": "06:00", "EndTime": "14:00"},
		{"EmployeeID": "E2", "Station": "L1", "StartTime": "06:00", "EndTime": "14:00"}
	]}}`
	rr = do(t, h, http.MethodPost, "/api/v1/schedule/run", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp scheduleRunResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, row := range resp.Master {
		if row.Breaks == "" {
			t.Fatalf("expected stored rule to produce breaks, got %+v", resp.Master)
		}
	}
}

func TestBreaksEndpoint(t *testing.T) {
	h := newTestRouter(New(Deps{}, zerolog.Nop()))

	entries := `[
		{"dept_id": "Cut-Up", "employee_id": "E1", "station": "L1", "start_time": "06:00", "end_time": "14:00", "type": "Work"},
		{"dept_id": "Cut-Up", "employee_id": "E2", "station": "L1", "start_time": "06:00", "end_time": "14:00", "type": "Work"}
	]`

	tests := []struct {
		name     string
		rules    string
		wantCode int
		wantErr  string
	}{
		{
			name:     "scheduled",
			rules:    `[{"dept_id": "Cut-Up", "break_start": "08:00", "break_end": "08:30", "batch_size": 1}]`,
			wantCode: http.StatusOK,
		},
		{
			name:     "missing window",
			rules:    `[{"dept_id": "Cut-Up", "break_start": "08:00"}]`,
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "configuration_error",
		},
		{
			name:     "limit below batch",
			rules:    `[{"dept_id": "Cut-Up", "break_start": "08:00", "break_end": "08:30", "batch_size": 2, "max_concurrent": 1}]`,
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "concurrency_exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"entries": ` + entries + `, "rules": ` + tt.rules + `}`

			rr := do(t, h, http.MethodPost, "/api/v1/breaks", body)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d body=%s", tt.wantCode, rr.Code, rr.Body.String())
			}

			if tt.wantErr != "" {
				var resp map[string]string
				if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp["error"] != tt.wantErr || !strings.Contains(resp["message"], "Cut-Up") {
					t.Fatalf("unexpected error body: %v", resp)
				}
				return
			}

			var resp struct {
				Breaks []models.RosterEntry `json:"breaks"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if len(resp.Breaks) != 2 {
				t.Fatalf("expected 2 breaks, got %d", len(resp.Breaks))
			}
			for _, b := range resp.Breaks {
				if !b.Type.IsBreak() || !b.HasWindow() {
					t.Fatalf("unexpected break entry %+v", b)
				}
			}
		})
	}
}

func TestBreakRuleCRUD(t *testing.T) {
	bus := events.NewBus()
	updated := bus.Subscribe(events.EventRulesUpdated)
	deleted := bus.Subscribe(events.EventRulesDeleted)
	h := newTestRouter(New(Deps{Store: newTestStore(t), Bus: bus}, zerolog.Nop()))

	rr := do(t, h, http.MethodPut, "/api/v1/break-rules/Deboning",
		`{"break_start": "09:00", "break_end": "09:30", "batch_size": 3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload := expectEvent(t, updated); payload["dept_id"] != "Deboning" {
		t.Fatalf("unexpected update event %v", payload)
	}

	rr = do(t, h, http.MethodGet, "/api/v1/break-rules/Deboning", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
	var rule models.BreakRule
	if err := json.NewDecoder(rr.Body).Decode(&rule); err != nil {
		t.Fatalf("decode rule: %v", err)
	}
	if rule.DeptID != "Deboning" || rule.BatchSize == nil || *rule.BatchSize != 3 {
		t.Fatalf("unexpected rule %+v", rule)
	}

	rr = do(t, h, http.MethodGet, "/api/v1/break-rules/", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"Deboning"`) {
		t.Fatalf("list: got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodDelete, "/api/v1/break-rules/Deboning", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rr.Code)
	}
	expectEvent(t, deleted)

	rr = do(t, h, http.MethodGet, "/api/v1/break-rules/Deboning", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rr.Code)
	}
	rr = do(t, h, http.MethodDelete, "/api/v1/break-rules/Deboning", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rr.Code)
	}
}

func TestBreakRulePutValidation(t *testing.T) {
	h := newTestRouter(New(Deps{Store: newTestStore(t)}, zerolog.Nop()))

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "inverted window", body: `{"break_start": "09:30", "break_end": "09:00"}`, wantCode: http.StatusUnprocessableEntity},
		{name: "missing end", body: `{"break_start": "09:30"}`, wantCode: http.StatusUnprocessableEntity},
		{name: "other department", body: `{"dept_id": "Other", "break_start": "09:00", "break_end": "09:30"}`, wantCode: http.StatusBadRequest},
		{name: "bad time", body: `{"break_start": "late", "break_end": "09:30"}`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPut, "/api/v1/break-rules/Deboning", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d body=%s", tt.wantCode, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestEndpointsWithoutStore(t *testing.T) {
	h := newTestRouter(New(Deps{}, zerolog.Nop()))

	for _, path := range []string{"/api/v1/break-rules/", "/api/v1/break-rules/A", "/api/v1/runs/", "/api/v1/runs/x"} {
		rr := do(t, h, http.MethodGet, path, "")
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s: expected 503, got %d", path, rr.Code)
		}
	}

	rr := do(t, h, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz: got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRunsListRejectsBadLimit(t *testing.T) {
	h := newTestRouter(New(Deps{Store: newTestStore(t)}, zerolog.Nop()))

	rr := do(t, h, http.MethodGet, "/api/v1/runs/?limit=abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/api/v1/runs/?limit=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
