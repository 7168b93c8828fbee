package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftwake/shiftwake/internal/alarm"
	"github.com/shiftwake/shiftwake/internal/api"
	"github.com/shiftwake/shiftwake/internal/api/models"
	"github.com/shiftwake/shiftwake/internal/auth"
	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/prefs"
	"github.com/shiftwake/shiftwake/internal/timer"
)

type recordingDeliverer struct {
	mu        sync.Mutex
	reminders []alarm.Reminder
}

func (d *recordingDeliverer) ShowReminder(_ context.Context, r alarm.Reminder) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reminders = append(d.reminders, r)
	return nil
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reminders)
}

type apiFixture struct {
	server    *httptest.Server
	token     string
	deliverer *recordingDeliverer
	facility  *timer.MemoryFacility
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zerolog.Nop()

	authService := auth.NewService(auth.Config{
		SigningKey: "router-test-signing-key",
		Issuer:     "https://api.shiftwake.test",
		Audience:   "shiftwake-api",
	})
	token, _, err := authService.GenerateDeviceToken("dev_router_test")
	require.NoError(t, err)

	dutyRepo := duty.NewInMemoryRepository()
	dutyService := duty.NewService(dutyRepo)

	prefsProvider := prefs.NewProvider(prefs.ProviderConfig{
		Repository: prefs.NewInMemoryRepository(),
		Logger:     logger,
	})

	facility := timer.NewMemoryFacility(logger, nil)
	t.Cleanup(facility.Close)

	planner := alarm.NewPlanner(alarm.PlannerConfig{})
	scheduler := alarm.NewScheduler(alarm.SchedulerConfig{
		Duties:   dutyRepo,
		Prefs:    prefsProvider,
		Facility: facility,
		Planner:  planner,
		Logger:   logger,
	})
	sessions := alarm.NewSnoozeSessions(alarm.SnoozeSessionsConfig{
		Facility:  facility,
		Scheduler: scheduler,
		Logger:    logger,
	})
	deliverer := &recordingDeliverer{}
	dispatcher := alarm.NewDispatcher(alarm.DispatcherConfig{
		Duties:    dutyRepo,
		Prefs:     prefsProvider,
		Facility:  facility,
		Sessions:  sessions,
		Deliverer: deliverer,
		Logger:    logger,
	})
	facility.SetHandler(dispatcher)

	router := api.NewRouter(api.RouterConfig{
		Version:        "test",
		BuildTime:      "now",
		Logger:         logger,
		AuthService:    authService,
		DutyService:    dutyService,
		DutyRepository: dutyRepo,
		Preferences:    prefsProvider,
		Scheduler:      scheduler,
		Dispatcher:     dispatcher,
		Sessions:       sessions,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiFixture{
		server:    server,
		token:     token,
		deliverer: deliverer,
		facility:  facility,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestRouter_HealthIsPublic(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/v1/ops/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_DutiesRequireAuth(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/v1/duties")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestRouter_DutyLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	// Create
	resp := f.do(t, http.MethodPost, "/v1/duties", models.DutyCreateRequest{
		Date:      "2031-05-20",
		Leg1Start: "06:30",
		Leg1End:   "10:45",
		Leg1Lines: []string{"12", "81"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Duty
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)

	// Schedule: default preferences arm day-before + 2 wake + 1 departure
	resp = f.do(t, http.MethodPost, "/v1/duties/"+created.ID+"/schedule", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.ScheduleResult
	decodeBody(t, resp, &result)
	assert.Equal(t, created.ID, result.DutyID)
	assert.Equal(t, 4, result.Registered)
	assert.Len(t, result.Plan, 4)
	assert.Len(t, f.facility.Armed(), 4)

	// Plan is persisted and readable
	resp = f.do(t, http.MethodGet, "/v1/duties/"+created.ID+"/plan", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &result)
	assert.Len(t, result.Plan, 4)

	// Cancel all
	resp = f.do(t, http.MethodDelete, "/v1/duties/"+created.ID+"/alarms", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, f.facility.Armed())

	// Delete
	resp = f.do(t, http.MethodDelete, "/v1/duties/"+created.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/v1/duties/"+created.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_ScheduleMissingDuty(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/v1/duties/dty_missing/schedule", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_SchedulePermissionDenied(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/v1/duties", models.DutyCreateRequest{
		Date:      "2031-05-20",
		Leg1Start: "06:30",
		Leg1End:   "10:45",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Duty
	decodeBody(t, resp, &created)

	f.facility.SetPermission(false)

	resp = f.do(t, http.MethodPost, "/v1/duties/"+created.ID+"/schedule", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var problem models.Problem
	decodeBody(t, resp, &problem)
	assert.Equal(t, models.ProblemTypePermissionNeeded, problem.Type)
}

func TestRouter_TriggerFireAndSnooze(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/v1/duties", models.DutyCreateRequest{
		Date:      "2031-05-20",
		Leg1Start: "06:30",
		Leg1End:   "10:45",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Duty
	decodeBody(t, resp, &created)

	// Fire the first wake alarm via the webhook
	resp = f.do(t, http.MethodPost, "/v1/triggers/fire", models.TriggerFireRequest{
		DutyID: created.ID,
		Kind:   string(duty.KindWakeApp),
	})
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, f.deliverer.count())

	// Snooze it
	resp = f.do(t, http.MethodPost, "/v1/triggers/"+created.ID+"/wake/0/snooze", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state models.SnoozeStateResponse
	decodeBody(t, resp, &state)
	assert.Equal(t, 1, state.SnoozeCount)
	assert.False(t, state.Dismissed)

	// Dismiss ends the session
	resp = f.do(t, http.MethodPost, "/v1/triggers/"+created.ID+"/wake/0/dismiss", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &state)
	assert.True(t, state.Dismissed)

	// Further actions have no session to act on
	resp = f.do(t, http.MethodPost, "/v1/triggers/"+created.ID+"/wake/0/snooze", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_TriggerFireValidation(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/v1/triggers/fire", models.TriggerFireRequest{
		DutyID:    "dty_x",
		Kind:      "lunch_break",
		SlotIndex: 0,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem models.Problem
	decodeBody(t, resp, &problem)
	require.NotEmpty(t, problem.Errors)
	assert.Equal(t, "kind", problem.Errors[0].Field)
}

func TestRouter_PreferencesRoundTrip(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/v1/me/preferences", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p models.NotificationPreferences
	decodeBody(t, resp, &p)
	assert.True(t, p.WakeApp)
	assert.Equal(t, []int{60, 30}, p.WakeOffsetsMin)

	p.WakeOffsetsMin = []int{90, 45, 20}
	p.NativeClock = true
	resp = f.do(t, http.MethodPut, "/v1/me/preferences", p)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/v1/me/preferences", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &p)
	assert.Equal(t, []int{90, 45, 20}, p.WakeOffsetsMin)
	assert.True(t, p.NativeClock)
}

func TestRouter_PreferencesValidation(t *testing.T) {
	f := newAPIFixture(t)

	bad := models.NotificationPreferences{
		WakeApp:        true,
		WakeOffsetsMin: []int{10, 20, 30, 40, 50, 60}, // one too many
	}
	resp := f.do(t, http.MethodPut, "/v1/me/preferences", bad)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
