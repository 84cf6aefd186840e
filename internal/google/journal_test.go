package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"salonbook/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupJournalServer(t *testing.T) (*http.ServeMux, *JournalService) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	return mux, newJournalService(srv, "journal_id")
}

func journalAppointment(id string) *models.Appointment {
	at := time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)
	return &models.Appointment{
		ID: id, SalonID: "s1", ClientID: "c1", ServiceID: "haircut",
		ScheduledAt: at, Status: models.StatusConfirmed, Version: 2,
		CreatedAt: at.Add(-48 * time.Hour), UpdatedAt: at.Add(-24 * time.Hour),
	}
}

func TestJournalTestConnection(t *testing.T) {
	mux, s := setupJournalServer(t)
	mux.HandleFunc("/v4/spreadsheets/journal_id/values/Appointments!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	if err := s.TestConnection(context.Background()); err != nil {
		t.Errorf("TestConnection failed: %v", err)
	}
}

func TestJournalUpsertExistingRow(t *testing.T) {
	mux, s := setupJournalServer(t)
	var updated sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/journal_id/values/Appointments!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}, {"other"}, {"a1"}}})
	})
	mux.HandleFunc("/v4/spreadsheets/journal_id/values/Appointments!A3:I3", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&updated)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	if err := s.UpsertAppointment(context.Background(), journalAppointment("a1")); err != nil {
		t.Fatalf("UpsertAppointment failed: %v", err)
	}
	if len(updated.Values) != 1 || len(updated.Values[0]) != len(journalHeaders) {
		t.Fatalf("unexpected update body: %+v", updated.Values)
	}
	if updated.Values[0][5] != "confirmed" {
		t.Errorf("expected status cell 'confirmed', got %v", updated.Values[0][5])
	}
	if row, ok := s.getCachedRow("a1"); !ok || row != 3 {
		t.Errorf("expected cached row 3, got %d", row)
	}
}

func TestJournalUpsertAppendsMissingRow(t *testing.T) {
	mux, s := setupJournalServer(t)
	appended := false
	mux.HandleFunc("/v4/spreadsheets/journal_id/values/Appointments!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	mux.HandleFunc("/v4/spreadsheets/journal_id/values/Appointments!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		appended = true
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Appointments!A2:I2"},
		})
	})

	if err := s.UpsertAppointment(context.Background(), journalAppointment("a2")); err != nil {
		t.Fatalf("UpsertAppointment failed: %v", err)
	}
	if !appended {
		t.Fatalf("expected append call")
	}
	if row, ok := s.getCachedRow("a2"); !ok || row != 2 {
		t.Errorf("expected cached row 2, got %d", row)
	}
}

func TestJournalWarmUpCache(t *testing.T) {
	mux, s := setupJournalServer(t)
	mux.HandleFunc("/v4/spreadsheets/journal_id/values/Appointments!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}, {"x1"}, {}, {"x3"}}})
	})
	if err := s.WarmUpCache(context.Background()); err != nil {
		t.Fatalf("WarmUpCache failed: %v", err)
	}
	if row, ok := s.getCachedRow("x3"); !ok || row != 4 {
		t.Errorf("expected row 4 for x3, got %d", row)
	}
}

func TestJournalReplace(t *testing.T) {
	mux, s := setupJournalServer(t)
	var written sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/journal_id/values/Appointments!A:Z:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	mux.HandleFunc("/v4/spreadsheets/journal_id/values/Appointments!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&written)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	appts := []*models.Appointment{journalAppointment("r1"), journalAppointment("r2")}
	if err := s.ReplaceJournal(context.Background(), appts); err != nil {
		t.Fatalf("ReplaceJournal failed: %v", err)
	}
	if len(written.Values) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(written.Values))
	}
	if row, _ := s.getCachedRow("r2"); row != 3 {
		t.Errorf("expected r2 at row 3, got %d", row)
	}
}

func TestAppointmentRowValues(t *testing.T) {
	values := appointmentRowValues(journalAppointment("v1"))
	expected := []interface{}{
		"v1", "s1", "c1", "haircut", "2030-03-04T09:00:00Z", "confirmed", int64(2),
		"2030-03-02 09:00:00", "2030-03-03 09:00:00",
	}
	if len(values) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(values))
	}
	for i := range expected {
		if values[i] != expected[i] {
			t.Errorf("value %d: expected %v, got %v", i, expected[i], values[i])
		}
	}
}
