package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Tsury/ha-tsuryphone/internal/coordinator"
	"github.com/Tsury/ha-tsuryphone/internal/device"
	"github.com/Tsury/ha-tsuryphone/internal/infrastructure/config"
	"github.com/Tsury/ha-tsuryphone/internal/infrastructure/logging"
	"github.com/Tsury/ha-tsuryphone/internal/phone"
)

// mockCoordinator implements Coordinator for testing.
type mockCoordinator struct {
	mu            sync.Mutex
	snapshot      phone.Snapshot
	health        coordinator.Health
	actionErr     error
	sectionErr    error
	actions       []string
	fastTriggers  int
	sectionPolled string
}

func (m *mockCoordinator) CurrentState() phone.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

func (m *mockCoordinator) Health() coordinator.Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

func (m *mockCoordinator) RequestAction(_ context.Context, action string, _ map[string]any) (coordinator.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
	if m.actionErr != nil {
		return coordinator.PendingAction{}, m.actionErr
	}
	return coordinator.PendingAction{ID: "pending-1", Action: action, IssuedAt: time.Now()}, nil
}

func (m *mockCoordinator) RefreshSection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sectionPolled = name
	return m.sectionErr
}

func (m *mockCoordinator) TriggerFastRefresh() {
	m.mu.Lock()
	m.fastTriggers++
	m.mu.Unlock()
}

// mockEvents implements EventSink for testing.
type mockEvents struct {
	mu     sync.Mutex
	events []string
}

func (m *mockEvents) PublishEvent(event string, _ map[string]any) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

func newTestServer(t *testing.T, coord *mockCoordinator, events EventSink) http.Handler {
	t.Helper()
	s, err := New(Deps{
		Config:      config.APIConfig{Host: "127.0.0.1", Port: 8098},
		Logger:      logging.Default(),
		Coordinator: coord,
		Events:      events,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s.buildRouter()
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Deps{Coordinator: &mockCoordinator{}}); err == nil {
		t.Error("New() without logger error = nil, want error")
	}
	if _, err := New(Deps{Logger: logging.Default()}); err == nil {
		t.Error("New() without coordinator error = nil, want error")
	}
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		available  bool
		wantStatus string
	}{
		{"available", true, "ok"},
		{"unavailable", false, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &mockCoordinator{health: coordinator.Health{Available: tt.available}}
			router := newTestServer(t, coord, nil)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
		})
	}
}

func TestHandleGetState(t *testing.T) {
	coord := &mockCoordinator{
		snapshot: phone.NewSnapshot(phone.Fields{
			phone.SectionStatus: map[string]any{"state": "Idle"},
		}, time.Now()),
		health: coordinator.Health{Available: true},
	}
	router := newTestServer(t, coord, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp stateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !resp.Available {
		t.Error("available = false, want true")
	}
	status, ok := resp.State["status"].(map[string]any)
	if !ok {
		t.Fatalf("state missing status section: %v", resp.State)
	}
	if status["state"] != "Idle" {
		t.Errorf("status state = %v, want Idle", status["state"])
	}
	if resp.UpdatedAt == "" {
		t.Error("updated_at is empty")
	}
}

func TestHandleGetState_StaleSnapshotStillServed(t *testing.T) {
	coord := &mockCoordinator{
		snapshot: phone.NewSnapshot(phone.Fields{
			phone.SectionStatus: map[string]any{"state": "InCall"},
		}, time.Now().Add(-time.Hour)),
		health: coordinator.Health{Available: false, PollFailures: 5},
	}
	router := newTestServer(t, coord, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp stateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Available {
		t.Error("available = true, want false")
	}
	if len(resp.State) == 0 {
		t.Error("stale state not served")
	}
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, &buf))
	return rec
}

func TestHandleAction_Accepted(t *testing.T) {
	coord := &mockCoordinator{}
	router := newTestServer(t, coord, nil)

	rec := postJSON(t, router, "/api/action", actionRequest{
		Action: phone.ActionCallCustom,
		Params: map[string]any{"number": "5551234"},
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var pending coordinator.PendingAction
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if pending.ID == "" {
		t.Error("pending id is empty")
	}

	coord.mu.Lock()
	defer coord.mu.Unlock()
	if len(coord.actions) != 1 || coord.actions[0] != phone.ActionCallCustom {
		t.Errorf("coordinator saw %v, want [dial]", coord.actions)
	}
}

func TestHandleAction_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		err      error
		wantCode int
	}{
		{"missing action", actionRequest{}, nil, http.StatusBadRequest},
		{"unknown action", actionRequest{Action: "warp"}, coordinator.ErrUnknownAction, http.StatusBadRequest},
		{"rejected", actionRequest{Action: phone.ActionHangup}, device.ErrDeviceRejected, http.StatusUnprocessableEntity},
		{"unreachable", actionRequest{Action: phone.ActionHangup}, device.ErrConnect, http.StatusBadGateway},
		{"timeout", actionRequest{Action: phone.ActionHangup}, device.ErrTimeout, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &mockCoordinator{actionErr: tt.err}
			router := newTestServer(t, coord, nil)

			rec := postJSON(t, router, "/api/action", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleAction_MalformedBody(t *testing.T) {
	router := newTestServer(t, &mockCoordinator{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/action", bytes.NewBufferString("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRefresh(t *testing.T) {
	coord := &mockCoordinator{}
	router := newTestServer(t, coord, nil)

	rec := postJSON(t, router, "/api/refresh", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	coord.mu.Lock()
	defer coord.mu.Unlock()
	if coord.fastTriggers != 1 {
		t.Errorf("fast triggers = %d, want 1", coord.fastTriggers)
	}
}

func TestHandleRefreshSection(t *testing.T) {
	coord := &mockCoordinator{
		snapshot: phone.NewSnapshot(phone.Fields{
			phone.SectionDND: map[string]any{"force": true},
		}, time.Now()),
	}
	router := newTestServer(t, coord, nil)

	rec := postJSON(t, router, "/api/sections/dnd/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	coord.mu.Lock()
	polled := coord.sectionPolled
	coord.mu.Unlock()
	if polled != "dnd" {
		t.Errorf("section polled = %q, want dnd", polled)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["force"] != true {
		t.Errorf("data = %v, want force=true", body["data"])
	}
}

func TestHandleRefreshSection_UnknownSection(t *testing.T) {
	coord := &mockCoordinator{sectionErr: device.ErrProtocol}
	router := newTestServer(t, coord, nil)

	rec := postJSON(t, router, "/api/sections/nonsense/refresh", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleWebhook(t *testing.T) {
	coord := &mockCoordinator{}
	events := &mockEvents{}
	router := newTestServer(t, coord, events)

	rec := postJSON(t, router, "/api/webhook/incoming_call", map[string]any{"number": "5551234"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	coord.mu.Lock()
	if coord.fastTriggers != 1 {
		t.Errorf("fast triggers = %d, want 1", coord.fastTriggers)
	}
	coord.mu.Unlock()

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.events) != 1 || events.events[0] != "incoming_call" {
		t.Errorf("forwarded events = %v, want [incoming_call]", events.events)
	}
}

func TestHandleWebhook_EmptyBody(t *testing.T) {
	coord := &mockCoordinator{}
	router := newTestServer(t, coord, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhook/call_ended", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}

func TestHandleWebhook_MalformedBody(t *testing.T) {
	coord := &mockCoordinator{}
	router := newTestServer(t, coord, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhook/call_ended", bytes.NewBufferString("{bad")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	coord.mu.Lock()
	defer coord.mu.Unlock()
	if coord.fastTriggers != 0 {
		t.Errorf("fast triggers = %d, want 0", coord.fastTriggers)
	}
}
