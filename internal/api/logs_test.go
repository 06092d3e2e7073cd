package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/breakplan/internal/logbuffer"
)

func TestLogsEndpoint(t *testing.T) {
	buf := logbuffer.New(10)
	logger := zerolog.New(logbuffer.NewWriter(buf, nil))
	logger.Info().Str("component", "schedule_log").Str("department", "Cut-Up").Msg("Inserting breaks")
	logger.Error().Str("component", "schedule_log").Str("department", "Deboning").Msg("Overlap detected")

	h := newTestRouter(New(Deps{Logs: buf}, zerolog.Nop()))

	rr := do(t, h, http.MethodGet, "/api/v1/logs?department=Deboning", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Entries []logbuffer.LogEntry `json:"entries"`
		Count   int                  `json:"count"`
		Stats   logbuffer.Stats      `json:"stats"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Entries[0].Message != "Overlap detected" {
		t.Fatalf("unexpected entries %+v", resp.Entries)
	}
	if resp.Stats.Count != 2 {
		t.Fatalf("expected stats over the whole buffer, got %+v", resp.Stats)
	}

	rr = do(t, h, http.MethodGet, "/api/v1/logs?order=asc&limit=1", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Message != "Inserting breaks" {
		t.Fatalf("expected oldest entry first, got %+v", resp.Entries)
	}

	for _, query := range []string{"?limit=0", "?since=now"} {
		if rr := do(t, h, http.MethodGet, "/api/v1/logs"+query, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", query, rr.Code)
		}
	}
}

func TestLogsEndpointWithoutBuffer(t *testing.T) {
	h := newTestRouter(New(Deps{}, zerolog.Nop()))
	if rr := do(t, h, http.MethodGet, "/api/v1/logs", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
