package api

import (
	"io"
	"net/http"
	"testing"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func busyTimes(t *testing.T, day map[string]any) []string {
	t.Helper()
	slots, ok := day["slots"].([]any)
	require.True(t, ok, "slots missing: %v", day)
	var out []string
	for _, raw := range slots {
		slot := raw.(map[string]any)
		if slot["busy"] == true {
			out = append(out, slot["time"].(string))
		}
	}
	return out
}

func TestHTTPHealthAndSalons(t *testing.T) {
	ts := newTestHTTPServer(t, config.APIConfig{})

	code, body := doJSON(t, ts, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = doJSON(t, ts, http.MethodGet, "/api/v1/salons", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["salons"], 1)

	code, body = doJSON(t, ts, http.MethodGet, "/api/v1/salons/s1", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Downtown", body["name"])

	code, body = doJSON(t, ts, http.MethodGet, "/api/v1/salons/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "salon_not_found", body["code"])
}

func TestHTTPListSlots(t *testing.T) {
	ts := newTestHTTPServer(t, config.APIConfig{})

	code, body := doJSON(t, ts, http.MethodGet, "/api/v1/salons/s1/slots?date="+testMonday, nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["closed"])
	assert.Len(t, body["slots"], 16)
	assert.Empty(t, busyTimes(t, body))

	code, body = doJSON(t, ts, http.MethodGet, "/api/v1/salons/s1/slots?date="+testSunday, nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["closed"])
	assert.Equal(t, "weekly day off", body["closed_reason"])

	code, body = doJSON(t, ts, http.MethodGet, "/api/v1/salons/s1/slots?date=03/04/2030", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", body["code"])

	code, _ = doJSON(t, ts, http.MethodGet, "/api/v1/salons/missing/slots?date="+testMonday, nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHTTPBookingLifecycle(t *testing.T) {
	ts := newTestHTTPServer(t, config.APIConfig{})
	c1, c2, c3 := testClient("c1"), testClient("c2"), testClient("c3")
	booking := map[string]string{"service_id": "haircut", "date": testMonday, "time": "09:00"}

	code, _ := doJSON(t, ts, http.MethodPost, "/api/v1/salons/s1/bookings", nil, booking)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, first := doJSON(t, ts, http.MethodPost, "/api/v1/salons/s1/bookings", &c1, booking)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "pending", first["status"])
	firstID := first["id"].(string)

	code, second := doJSON(t, ts, http.MethodPost, "/api/v1/salons/s1/bookings", &c2, booking)
	require.Equal(t, http.StatusCreated, code)
	secondID := second["id"].(string)

	code, body := doJSON(t, ts, http.MethodPost, "/api/v1/salons/s1/bookings", &c1,
		map[string]string{"service_id": "haircut", "date": testMonday, "time": "10:00"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate_pending_request", body["code"])

	code, body = doJSON(t, ts, http.MethodPost, "/api/v1/salons/s1/bookings", &c3,
		map[string]string{"service_id": "haircut", "date": testMonday, "time": "13:00"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "slot_not_offered", body["code"])

	code, body = doJSON(t, ts, http.MethodPost, "/api/v1/appointments/"+firstID+"/confirm", &c1, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", body["code"])

	code, body = doJSON(t, ts, http.MethodPost, "/api/v1/appointments/"+firstID+"/confirm", &testManager, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "confirmed", body["status"])

	code, body = doJSON(t, ts, http.MethodPost, "/api/v1/appointments/"+secondID+"/confirm", &testManager, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "race_lost_at_confirm", body["code"])

	code, body = doJSON(t, ts, http.MethodPost, "/api/v1/salons/s1/bookings", &c3, booking)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "slot_already_confirmed", body["code"])

	code, _ = doJSON(t, ts, http.MethodPost, "/api/v1/appointments/"+firstID+"/teleport", &testManager, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = doJSON(t, ts, http.MethodGet, "/api/v1/appointments/"+firstID, &c1, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, firstID, body["id"])

	code, _ = doJSON(t, ts, http.MethodGet, "/api/v1/appointments/"+firstID, &c3, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = doJSON(t, ts, http.MethodGet, "/api/v1/appointments/nope", &testManager, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = doJSON(t, ts, http.MethodGet, "/api/v1/salons/s1/slots?date="+testMonday, nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"09:00"}, busyTimes(t, body))

	code, body = doJSON(t, ts, http.MethodGet, "/api/v1/me/appointments", &c1, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["appointments"], 1)

	code, body = doJSON(t, ts, http.MethodGet, "/api/v1/notifications?salon_id=s1", &testManager, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["notifications"])

	code, body = doJSON(t, ts, http.MethodGet, "/api/v1/notifications", &c1, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["notifications"], 1)

	code, _ = doJSON(t, ts, http.MethodGet, "/api/v1/notifications?limit=zero", &c1, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = doJSON(t, ts, http.MethodPost, "/api/v1/appointments/"+secondID+"/cancel", &c2, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cancelled", body["status"])
}

func TestHTTPListAppointments(t *testing.T) {
	ts := newTestHTTPServer(t, config.APIConfig{})
	for i, client := range []string{"c1", "c2"} {
		actor := testClient(client)
		code, _ := doJSON(t, ts, http.MethodPost, "/api/v1/salons/s1/bookings", &actor,
			map[string]string{"service_id": "nails", "date": testMonday, "time": []string{"09:00", "09:30"}[i]})
		require.Equal(t, http.StatusCreated, code)
	}

	path := "/api/v1/salons/s1/appointments?from=" + testMonday + "&to=" + testMonday
	code, body := doJSON(t, ts, http.MethodGet, path, &testManager, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["appointments"], 2)

	code, body = doJSON(t, ts, http.MethodGet, path+"&status=confirmed", &testManager, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["appointments"])

	code, body = doJSON(t, ts, http.MethodGet, path+"&status=lost", &testManager, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", body["code"])

	code, _ = doJSON(t, ts, http.MethodGet, "/api/v1/salons/s1/appointments?from=2030-03-05&to=2030-03-04", &testManager, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	client := testClient("c1")
	code, _ = doJSON(t, ts, http.MethodGet, path, &client, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestHTTPScheduleAndClosures(t *testing.T) {
	ts := newTestHTTPServer(t, config.APIConfig{})
	client := testClient("c1")

	closures := map[string]any{"closures": []map[string]string{
		{"start_date": testMonday, "end_date": testMonday, "reason": "renovation"},
	}}
	code, _ := doJSON(t, ts, http.MethodPut, "/api/v1/salons/s1/closures", &client, closures)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = doJSON(t, ts, http.MethodPut, "/api/v1/salons/s1/closures", &testManager, closures)
	require.Equal(t, http.StatusOK, code)

	code, body := doJSON(t, ts, http.MethodGet, "/api/v1/salons/s1/closures", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["closures"], 1)

	code, body = doJSON(t, ts, http.MethodGet, "/api/v1/salons/s1/slots?date="+testMonday, nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["closed"])
	assert.Equal(t, "renovation", body["closed_reason"])

	inverted := map[string]any{"closures": []map[string]string{
		{"start_date": "2030-03-05", "end_date": testMonday},
	}}
	code, body = doJSON(t, ts, http.MethodPut, "/api/v1/salons/s1/closures", &testManager, inverted)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_schedule", body["code"])

	schedule := scheduleRequest{
		Template:       models.ScheduleTemplate{OpenTime: "10:00", CloseTime: "12:00", IntervalMinutes: 60},
		ClosedWeekdays: []time.Weekday{time.Saturday},
	}
	code, body = doJSON(t, ts, http.MethodPut, "/api/v1/salons/s1/schedule", &testManager, schedule)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "10:00", body["template"].(map[string]any)["open_time"])

	code, body = doJSON(t, ts, http.MethodGet, "/api/v1/salons/s1/slots?date=2030-03-05", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["slots"], 2)

	schedule.Template.CloseTime = "09:00"
	code, body = doJSON(t, ts, http.MethodPut, "/api/v1/salons/s1/schedule", &testManager, schedule)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_schedule", body["code"])

	code, _ = doJSON(t, ts, http.MethodPut, "/api/v1/salons/s1/schedule", &testManager, map[string]any{"bogus": 1})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHTTPExport(t *testing.T) {
	ts := newTestHTTPServer(t, config.APIConfig{})
	client := testClient("c1")
	code, _ := doJSON(t, ts, http.MethodPost, "/api/v1/salons/s1/bookings", &client,
		map[string]string{"service_id": "color", "date": testMonday, "time": "11:00"})
	require.Equal(t, http.StatusCreated, code)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/salons/s1/appointments/export?from="+testMonday+"&to=2030-03-10", nil)
	require.NoError(t, err)
	setActor(req, &testManager)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "s1_2030-03-04_to_2030-03-10.xlsx")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Greater(t, len(data), 2)
	assert.Equal(t, "PK", string(data[:2]))

	code, _ = doJSON(t, ts, http.MethodGet, "/api/v1/salons/s1/appointments/export?from="+testMonday+"&to=2030-03-10", &client, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestHTTPAPIKeyAuth(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "widget", Extra: "secret", Permissions: []string{permReadAvailability}},
			},
		},
	}
	ts := newTestHTTPServer(t, cfg)

	get := func(path string, headers map[string]string) int {
		req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		require.NoError(t, err)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	valid := map[string]string{"x-api-key": "widget", "x-api-extra": "secret"}

	assert.Equal(t, http.StatusOK, get("/healthz", nil))
	assert.Equal(t, http.StatusUnauthorized, get("/api/v1/salons/s1/slots?date="+testMonday, nil))
	assert.Equal(t, http.StatusUnauthorized, get("/api/v1/salons/s1/slots?date="+testMonday,
		map[string]string{"x-api-key": "widget", "x-api-extra": "wrong"}))
	assert.Equal(t, http.StatusOK, get("/api/v1/salons/s1/slots?date="+testMonday, valid))
	assert.Equal(t, http.StatusForbidden, get("/api/v1/me/appointments", valid))
}

func TestHTTPRateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Enabled:   true,
		HTTP:      config.APIHTTPConfig{Enabled: true},
		RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 1},
	}
	ts := newTestHTTPServer(t, cfg)

	code, _ := doJSON(t, ts, http.MethodGet, "/api/v1/salons", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	code, body := doJSON(t, ts, http.MethodGet, "/api/v1/salons", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "too_many_requests", body["code"])
}

func TestHTTPBearerActor(t *testing.T) {
	cfg := config.APIConfig{Auth: config.APIAuthConfig{JWTSecret: "s3cret"}}
	ts := newTestHTTPServer(t, cfg)

	token, err := IssueToken("s3cret", testClient("c1"), time.Hour)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/me/appointments", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// plain actor headers are ignored once tokens are required
	client := testClient("c1")
	code, body := doJSON(t, ts, http.MethodGet, "/api/v1/me/appointments", &client, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", body["code"])
}
