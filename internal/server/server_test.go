package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Trip2025/girobot/internal/database"
	"github.com/Trip2025/girobot/internal/notify"
	"github.com/Trip2025/girobot/internal/pipeline"
	"github.com/Trip2025/girobot/internal/report"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeRunner struct {
	result   *pipeline.Result
	runs     int
	previews int
	trigger  pipeline.Trigger
}

func (f *fakeRunner) Run(_ context.Context, trigger pipeline.Trigger) *pipeline.Result {
	f.runs++
	f.trigger = trigger
	return f.result
}

func (f *fakeRunner) Preview(context.Context) *pipeline.Result {
	f.previews++
	return f.result
}

func sentResult() *pipeline.Result {
	return &pipeline.Result{
		Assembly: pipeline.Assembly{
			Stage:  4,
			Source: pipeline.SourceLive,
			Record: report.FactRecord{Stage: "4", Winner: "Tadej Pogačar"},
		},
		Message:   "🏁 *Stage 4 Summary*\n🏆 Winner: Tadej Pogačar",
		Channel:   "whatsapp",
		Delivered: true,
	}
}

func fixedNext() time.Time {
	return time.Date(2025, time.May, 7, 8, 0, 0, 0, time.FixedZone("AEST", 10*60*60))
}

func newTestServer(t *testing.T, runner Runner, log DeliveryLog) *Server {
	t.Helper()
	srv, err := New(Deps{Runner: runner, Log: log, Next: fixedNext, RaceName: "Giro d'Italia 2025"})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func serve(srv *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	reason := "fetch: HTTP 503"
	db.InsertDelivery(database.Delivery{RunDate: "2025-05-06", Stage: 4, Source: "fallback", FallbackReason: &reason, Channel: "whatsapp", Delivered: true})

	rec := serve(newTestServer(t, &fakeRunner{}, db), "GET", "/")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"GiroBot is running", "2025-05-07 08:00:00 AEST", "2025-05-06", "fallback", "1 of 1 deliveries"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response body", want)
		}
	}
}

func TestIndexWithoutLog(t *testing.T) {
	rec := serve(newTestServer(t, &fakeRunner{}, nil), "GET", "/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No deliveries yet") {
		t.Error("expected empty delivery list")
	}
}

func TestTriggerSuccess(t *testing.T) {
	runner := &fakeRunner{result: sentResult()}
	srv := newTestServer(t, runner, nil)

	for _, method := range []string{"GET", "POST"} {
		rec := serve(srv, method, "/trigger")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", method, rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "Update sent") {
			t.Errorf("%s: expected success page", method)
		}
		if !strings.Contains(body, "<strong>Stage 4 Summary</strong>") {
			t.Errorf("%s: expected rendered message, got %s", method, body)
		}
	}
	if runner.runs != 2 || runner.trigger != pipeline.TriggerManual {
		t.Errorf("expected 2 manual runs, got %d (%s)", runner.runs, runner.trigger)
	}
}

func TestTriggerFailure(t *testing.T) {
	result := sentResult()
	result.Delivered = false
	result.Err = &notify.SendError{Channel: "whatsapp", Cause: errors.New("twilio: HTTP 401")}
	result.Assembly.Source = pipeline.SourceFallback

	rec := serve(newTestServer(t, &fakeRunner{result: result}, nil), "POST", "/trigger")

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Update failed", "twilio: HTTP 401", "fallback data was used"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in failure page", want)
		}
	}
}

func TestHealthRoute(t *testing.T) {
	rec := serve(newTestServer(t, &fakeRunner{}, nil), "GET", "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["status"] != "healthy" || got["next_update"] != "2025-05-07 08:00:00 AEST" {
		t.Errorf("unexpected health response %v", got)
	}
}

func TestPreviewRoute(t *testing.T) {
	result := sentResult()
	result.Assembly.Source = pipeline.SourceFallback
	result.Assembly.Cause = errors.New("results table not found")
	runner := &fakeRunner{result: result}

	rec := serve(newTestServer(t, runner, nil), "GET", "/preview")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if runner.runs != 0 || runner.previews != 1 {
		t.Errorf("preview must not deliver: %d runs, %d previews", runner.runs, runner.previews)
	}

	var got previewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Stage != 4 || got.Source != "fallback" || got.Cause != "results table not found" {
		t.Errorf("unexpected preview %+v", got)
	}
	if got.Record.Winner != "Tadej Pogačar" {
		t.Errorf("unexpected record %+v", got.Record)
	}
}

func TestStaticFiles(t *testing.T) {
	rec := serve(newTestServer(t, &fakeRunner{}, nil), "GET", "/static/style.css")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	rec := serve(newTestServer(t, &fakeRunner{}, nil), "GET", "/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRenderMarkdown(t *testing.T) {
	got := string(renderMarkdown("🎽 *Jersey Leaders*\n🩷 Maglia Rosa: X"))
	if !strings.Contains(got, "<strong>Jersey Leaders</strong>") {
		t.Errorf("expected bold heading, got %s", got)
	}
	if !strings.Contains(got, "<br") {
		t.Errorf("expected hard line break, got %s", got)
	}
}
