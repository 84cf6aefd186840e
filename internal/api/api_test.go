package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/events"
	"salonbook/internal/export"
	"salonbook/internal/models"
	"salonbook/internal/repository"
	"salonbook/internal/schedule"
	"salonbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	testManager = models.Actor{ID: "m1", Role: models.RoleManager, Salons: []string{"s1"}}
	testMonday  = "2030-03-04"
	testSunday  = "2030-03-03"
)

func testClient(id string) models.Actor {
	return models.Actor{ID: id, Role: models.RoleClient}
}

func newTestServices(t *testing.T) Services {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	salons := service.NewSalonService(db, &logger)
	require.NoError(t, salons.Seed(context.Background(), []models.Salon{{
		ID:       "s1",
		Name:     "Downtown",
		Timezone: "UTC",
		Template: models.ScheduleTemplate{
			OpenTime: "09:00", CloseTime: "18:00", IntervalMinutes: 30,
			LunchStart: "13:00", LunchEnd: "14:00",
		},
		ClosedWeekdays: []time.Weekday{time.Sunday},
	}}))

	provider := schedule.NewProvider(db, time.UTC, &logger)
	booking := service.NewBookingService(db, provider, events.NewEventBus(), nil,
		repository.NewMemorySubmissionLimiter(), service.BookingOptions{}, &logger)

	return Services{
		Availability: service.NewAvailabilityService(provider, db, &logger),
		Booking:      booking,
		Salons:       salons,
		Exporter:     export.NewExporter(db, provider, t.TempDir(), &logger),
	}
}

func newTestHTTPServer(t *testing.T, cfg config.APIConfig) *httptest.Server {
	t.Helper()
	logger := zerolog.New(io.Discard)
	server := NewHTTPServer(cfg, newTestServices(t), &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func setActor(req *http.Request, actor *models.Actor) {
	if actor == nil {
		return
	}
	req.Header.Set(actorIDHeader, actor.ID)
	req.Header.Set(actorRoleHeader, string(actor.Role))
	req.Header.Set(actorSalonsHeader, strings.Join(actor.Salons, ","))
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, actor *models.Actor, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	setActor(req, actor)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}
