package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func setupCalendarServer(t *testing.T) (*http.ServeMux, *CalendarService) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := calendar.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/calendar/v3/"), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("calendar service: %v", err)
	}
	return mux, newCalendarService(srv, "cal")
}

func writeAPIError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope"}}`, code)
}

func TestEventID(t *testing.T) {
	got := EventID("3F2504E0-4F89-11D3-9A0C-0305E82C3301")
	want := "appt3f2504e04f8911d39a0c0305e82c3301"
	if got != want {
		t.Errorf("EventID = %s, want %s", got, want)
	}
	if EventID("xyz-1") != "appt1" {
		t.Errorf("characters outside a-v must be dropped, got %s", EventID("xyz-1"))
	}
}

func TestCalendarUpsertInsertsWhenMissing(t *testing.T) {
	mux, s := setupCalendarServer(t)
	appt := journalAppointment("a1")
	var inserted calendar.Event

	mux.HandleFunc("PUT /calendar/v3/calendars/cal/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound)
	})
	mux.HandleFunc("POST /calendar/v3/calendars/cal/events", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&inserted)
		_ = json.NewEncoder(w).Encode(inserted)
	})

	if err := s.UpsertAppointmentEvent(context.Background(), appt); err != nil {
		t.Fatalf("UpsertAppointmentEvent failed: %v", err)
	}
	if inserted.Id != EventID("a1") {
		t.Errorf("expected event id %s, got %s", EventID("a1"), inserted.Id)
	}
	if inserted.Start == nil || inserted.Start.DateTime != "2030-03-04T09:00:00Z" {
		t.Errorf("unexpected start: %+v", inserted.Start)
	}
	if inserted.End == nil || inserted.End.DateTime != "2030-03-04T09:30:00Z" {
		t.Errorf("unexpected end: %+v", inserted.End)
	}
}

func TestCalendarUpsertUpdatesExisting(t *testing.T) {
	mux, s := setupCalendarServer(t)
	updates := 0
	mux.HandleFunc("PUT /calendar/v3/calendars/cal/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		updates++
		_ = json.NewEncoder(w).Encode(calendar.Event{Id: r.PathValue("id")})
	})
	mux.HandleFunc("POST /calendar/v3/calendars/cal/events", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("insert must not be called when the event exists")
	})

	if err := s.UpsertAppointmentEvent(context.Background(), journalAppointment("a2")); err != nil {
		t.Fatalf("UpsertAppointmentEvent failed: %v", err)
	}
	if updates != 1 {
		t.Errorf("expected 1 update, got %d", updates)
	}
}

func TestCalendarUpsertPropagatesServerErrors(t *testing.T) {
	mux, s := setupCalendarServer(t)
	mux.HandleFunc("PUT /calendar/v3/calendars/cal/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusForbidden)
	})
	if err := s.UpsertAppointmentEvent(context.Background(), journalAppointment("a3")); err == nil {
		t.Fatalf("expected error on 403")
	}
}

func TestCalendarDeleteIgnoresMissing(t *testing.T) {
	mux, s := setupCalendarServer(t)
	mux.HandleFunc("DELETE /calendar/v3/calendars/cal/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusGone)
	})
	if err := s.DeleteAppointmentEvent(context.Background(), "a4"); err != nil {
		t.Fatalf("DeleteAppointmentEvent failed: %v", err)
	}
}
