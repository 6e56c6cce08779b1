package audithttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vesta-hotels/vesta/internal/audit"
)

type stubTimelineService struct {
	result      audit.Result
	csv         []byte
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) ExportTimeline(ctx context.Context, filters audit.TimelineFilters) ([]byte, error) {
	s.lastFilters = filters
	return s.csv, nil
}

func TestTimelineReturnsRows(t *testing.T) {
	rows := []audit.TimelineRow{{
		At: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), ActorID: 7,
		Action: "role.update", Entity: "role", EntityID: "1",
	}}
	service := &stubTimelineService{result: audit.Result{Rows: rows, Paging: audit.PagingInfo{Page: 1, PageSize: 20, HasNext: true}}}
	handler := NewHandler(nil, service)

	req := httptest.NewRequest(http.MethodGet, "/audit?from=2026-03-01&to=2026-03-15&actor_id=7", nil)
	rr := httptest.NewRecorder()
	handler.handleTimeline(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp timelineResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Rows) != 1 || resp.Rows[0].Action != "role.update" {
		t.Fatalf("unexpected rows: %+v", resp.Rows)
	}
	if !resp.HasNext {
		t.Fatalf("expected hasNext true")
	}
	if service.lastFilters.From.Format("2006-01-02") != "2026-03-01" {
		t.Fatalf("unexpected from filter: %+v", service.lastFilters)
	}
	if service.lastFilters.ActorID != 7 {
		t.Fatalf("unexpected actor filter: %+v", service.lastFilters)
	}
}

func TestExportCSVHeaders(t *testing.T) {
	service := &stubTimelineService{csv: []byte("at,actor_id,action,entity,entity_id\n")}
	handler := NewHandler(nil, service)

	req := httptest.NewRequest(http.MethodGet, "/audit/export.csv?from=2026-03-01", nil)
	rr := httptest.NewRecorder()
	handler.handleExport(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ctype := rr.Header().Get("Content-Type"); !strings.Contains(ctype, "text/csv") {
		t.Fatalf("unexpected content-type: %s", ctype)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "audit-timeline.csv") {
		t.Fatalf("missing attachment disposition")
	}
}
