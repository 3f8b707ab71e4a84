package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"carealert/internal/alerts"
	"carealert/internal/crisis"
	"carealert/internal/db"
	"carealert/internal/models"
	"carealert/internal/notify"
	"carealert/internal/validation"
)

type envelope struct {
	Status string            `json:"status"`
	Data   json.RawMessage   `json:"data"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, env
}

type fakeAlerts struct {
	mu          sync.Mutex
	recorded    []models.CrisisEvent
	recordErr   error
	transitions map[uuid.UUID]string
	transErr    error
}

func (f *fakeAlerts) Record(ctx context.Context, userID uuid.UUID, event models.CrisisEvent) (*models.CrisisAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.recorded = append(f.recorded, event)
	return &models.CrisisAlert{
		ID:         uuid.New(),
		UserID:     userID,
		Level:      event.Level,
		Triggers:   event.Triggers,
		Confidence: event.Confidence,
		Status:     models.AlertPending,
		DetectedAt: time.Now(),
	}, nil
}

func (f *fakeAlerts) Transition(ctx context.Context, id uuid.UUID, to string) (*models.CrisisAlert, error) {
	if f.transErr != nil {
		return nil, f.transErr
	}
	if f.transitions == nil {
		f.transitions = map[uuid.UUID]string{}
	}
	f.transitions[id] = to
	return &models.CrisisAlert{ID: id, Status: to}, nil
}

type fakeEnqueuer struct {
	reqs []notify.EnqueueRequest
	err  error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, req notify.EnqueueRequest) (*models.EnqueueResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.EnqueueResponse{
		ChannelsCreated:  1,
		ContactResolved:  true,
		PerChannelResult: []models.ChannelResult{{Channel: models.ChannelInApp, Status: models.ChannelCreated}},
	}, nil
}

func TestClassify(t *testing.T) {
	app := fiber.New()
	h := NewClassifyHandler(crisis.NewClassifier(crisis.DefaultLexicon(), 100))
	app.Post("/classify", h.Classify)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantLevel  string
	}{
		{"high signal", `{"text":"I want to end my life"}`, http.StatusOK, models.LevelHigh},
		{"low signal", `{"text":"so stressed about exams"}`, http.StatusOK, models.LevelLow},
		{"no signal", `{"text":"had a nice lunch"}`, http.StatusOK, ""},
		{"missing text", `{}`, http.StatusBadRequest, ""},
		{"too long", `{"text":"` + strings.Repeat("a", 101) + `"}`, http.StatusBadRequest, ""},
		{"bad json", `{"text":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := doJSON(t, app, http.MethodPost, "/classify", tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", status, tt.wantStatus, env.Error)
			}
			if status != http.StatusOK {
				return
			}
			var event models.CrisisEvent
			if err := json.Unmarshal(env.Data, &event); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if event.Level != tt.wantLevel {
				t.Errorf("level = %q, want %q", event.Level, tt.wantLevel)
			}
			if event.Detected != (tt.wantLevel != "") {
				t.Errorf("detected = %v for level %q", event.Detected, tt.wantLevel)
			}
		})
	}
}

func TestClassify_MissingTextReportsField(t *testing.T) {
	app := fiber.New()
	app.Post("/classify", NewClassifyHandler(crisis.NewClassifier(crisis.DefaultLexicon(), 0)).Classify)

	_, env := doJSON(t, app, http.MethodPost, "/classify", `{}`)
	if env.Fields["text"] == "" {
		t.Errorf("fields = %v, want text entry", env.Fields)
	}
}

func newScreenApp(rec *fakeAlerts, enq *fakeEnqueuer, enabled bool, minLevel string) *fiber.App {
	app := fiber.New()
	h := NewScreenHandler(crisis.NewClassifier(crisis.DefaultLexicon(), 0), rec, enq, enabled, minLevel)
	app.Post("/screen", h.Screen)
	return app
}

func TestScreen_RaisesAlertAtThreshold(t *testing.T) {
	rec := &fakeAlerts{}
	enq := &fakeEnqueuer{}
	app := newScreenApp(rec, enq, true, models.LevelMedium)
	userID := uuid.New()

	status, env := doJSON(t, app, http.MethodPost, "/screen",
		`{"userId":"`+userID.String()+`","text":"I feel hopeless"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d (%s)", status, env.Error)
	}

	var resp models.ScreenResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Alert == nil || resp.Alert.Level != models.LevelMedium {
		t.Fatalf("alert = %+v, want medium alert", resp.Alert)
	}
	if resp.Notification == nil || resp.Notification.ChannelsCreated != 1 {
		t.Errorf("notification = %+v", resp.Notification)
	}

	if len(enq.reqs) != 1 {
		t.Fatalf("enqueue calls = %d, want 1", len(enq.reqs))
	}
	req := enq.reqs[0]
	if req.UserID != userID || req.Type != models.NotificationCrisisAlert {
		t.Errorf("request = %+v", req)
	}
	if req.Source.Type != "crisis_alert" || req.Source.ID != resp.Alert.ID.String() {
		t.Errorf("source = %+v, want crisis_alert/%s", req.Source, resp.Alert.ID)
	}
}

func TestScreen_NoAlert(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		enabled  bool
		minLevel string
	}{
		{"below threshold", "a bit stressed", true, models.LevelMedium},
		{"nothing detected", "great day", true, models.LevelLow},
		{"alerting disabled", "I want to kill myself", false, models.LevelLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeAlerts{}
			enq := &fakeEnqueuer{}
			app := newScreenApp(rec, enq, tt.enabled, tt.minLevel)

			status, env := doJSON(t, app, http.MethodPost, "/screen",
				`{"userId":"`+uuid.NewString()+`","text":"`+tt.text+`"}`)
			if status != http.StatusOK {
				t.Fatalf("status = %d (%s)", status, env.Error)
			}
			if len(rec.recorded) != 0 || len(enq.reqs) != 0 {
				t.Errorf("recorded %d alerts, %d enqueues; want none", len(rec.recorded), len(enq.reqs))
			}
		})
	}
}

func TestScreen_EnqueueFailureKeepsAlert(t *testing.T) {
	rec := &fakeAlerts{}
	enq := &fakeEnqueuer{err: errors.New("db down")}
	app := newScreenApp(rec, enq, true, models.LevelLow)

	status, env := doJSON(t, app, http.MethodPost, "/screen",
		`{"userId":"`+uuid.NewString()+`","text":"I am suicidal"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d (%s)", status, env.Error)
	}
	var resp models.ScreenResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Alert == nil {
		t.Error("alert missing from response")
	}
	if resp.Notification != nil {
		t.Errorf("notification = %+v, want nil", resp.Notification)
	}
}

func TestScreen_RecordFailure(t *testing.T) {
	app := newScreenApp(&fakeAlerts{recordErr: errors.New("db down")}, &fakeEnqueuer{}, true, models.LevelLow)

	status, _ := doJSON(t, app, http.MethodPost, "/screen",
		`{"userId":"`+uuid.NewString()+`","text":"I am suicidal"}`)
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
}

func TestScreen_InvalidUser(t *testing.T) {
	app := newScreenApp(&fakeAlerts{}, &fakeEnqueuer{}, true, models.LevelLow)

	for _, body := range []string{`{"text":"hi"}`, `{"userId":"nope","text":"hi"}`} {
		status, env := doJSON(t, app, http.MethodPost, "/screen", body)
		if status != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, status)
		}
		if env.Fields["userId"] == "" {
			t.Errorf("%s: fields = %v, want userId", body, env.Fields)
		}
	}
}

func TestAlertUpdateStatus(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name       string
		path       string
		body       string
		err        error
		wantStatus int
	}{
		{"ok", "/alerts/" + id.String() + "/status", `{"status":"acknowledged"}`, nil, http.StatusOK},
		{"bad id", "/alerts/xyz/status", `{"status":"acknowledged"}`, nil, http.StatusBadRequest},
		{"missing status", "/alerts/" + id.String() + "/status", `{}`, nil, http.StatusBadRequest},
		{"validation", "/alerts/" + id.String() + "/status", `{"status":"gone"}`, validation.NewError("status", "is invalid"), http.StatusBadRequest},
		{"not found", "/alerts/" + id.String() + "/status", `{"status":"acknowledged"}`, db.ErrAlertNotFound, http.StatusNotFound},
		{"invalid transition", "/alerts/" + id.String() + "/status", `{"status":"resolved"}`, alerts.ErrInvalidTransition, http.StatusConflict},
		{"terminal", "/alerts/" + id.String() + "/status", `{"status":"contacted"}`, alerts.ErrAlertTerminal, http.StatusConflict},
		{"conflict", "/alerts/" + id.String() + "/status", `{"status":"contacted"}`, db.ErrAlertConflict, http.StatusConflict},
		{"store failure", "/alerts/" + id.String() + "/status", `{"status":"contacted"}`, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeAlerts{transErr: tt.err}
			app := fiber.New()
			app.Post("/alerts/:id/status", NewAlertHandler(rec).UpdateStatus)

			status, env := doJSON(t, app, http.MethodPost, tt.path, tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", status, tt.wantStatus, env.Error)
			}
			if tt.wantStatus == http.StatusOK && rec.transitions[id] != models.AlertAcknowledged {
				t.Errorf("transitions = %v", rec.transitions)
			}
		})
	}
}

type fakeMetrics struct {
	m   *models.CrisisMetrics
	err error
}

func (f fakeMetrics) Compute(ctx context.Context) (*models.CrisisMetrics, error) {
	return f.m, f.err
}

func TestCrisisMetrics(t *testing.T) {
	want := &models.CrisisMetrics{
		TotalAlerts:            4,
		ActiveAlerts:           3,
		AvgResponseTimeMinutes: 12.5,
		ResolutionRatePercent:  50,
		WeeklyTrendPercent:     -25,
	}
	app := fiber.New()
	app.Get("/metrics", NewMetricsHandler(fakeMetrics{m: want}).CrisisMetrics)

	status, env := doJSON(t, app, http.MethodGet, "/metrics", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var got models.CrisisMetrics
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != *want {
		t.Errorf("metrics = %+v, want %+v", got, *want)
	}
}

func TestCrisisMetrics_Error(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", NewMetricsHandler(fakeMetrics{err: errors.New("db down")}).CrisisMetrics)

	status, env := doJSON(t, app, http.MethodGet, "/metrics", "")
	if status != http.StatusInternalServerError || env.Status != "error" {
		t.Errorf("status = %d, envelope = %+v", status, env)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestHealthz(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"healthy", nil, http.StatusOK},
		{"database down", errors.New("refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/healthz", NewHealthHandler(fakePinger{err: tt.err}).Healthz)
			status, _ := doJSON(t, app, http.MethodGet, "/healthz", "")
			if status != tt.want {
				t.Errorf("status = %d, want %d", status, tt.want)
			}
		})
	}
}
