package google

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	journalSheet   = "Appointments"
	journalIDRange = journalSheet + "!A:A"
	rowTimeLayout  = "2006-01-02 15:04:05"
)

var errRowNotFound = errors.New("appointment row not found")

var journalHeaders = []interface{}{"ID", "Salon", "Client", "Service", "Scheduled At", "Status", "Version", "Created At", "Updated At"}

var _ domain.JournalWriter = (*JournalService)(nil)

// JournalService mirrors appointments into one spreadsheet row each, keyed by
// appointment id in column A.
type JournalService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
}

func NewJournalService(ctx context.Context, credentialsFile, spreadsheetID string) (*JournalService, error) {
	client, err := newHTTPClient(ctx, credentialsFile, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, err
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newJournalService(srv, spreadsheetID), nil
}

func newJournalService(srv *sheets.Service, spreadsheetID string) *JournalService {
	return &JournalService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[string]int),
	}
}

// TestConnection reads the header cell of the journal sheet.
func (s *JournalService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, journalSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// WarmUpCache populates the row index cache by reading the whole id column.
func (s *JournalService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, journalIDRange).Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
	for i, row := range resp.Values {
		if id := cellString(row); id != "" {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// UpsertAppointment rewrites the appointment's row or appends a new one.
func (s *JournalService) UpsertAppointment(ctx context.Context, appt *models.Appointment) error {
	if appt == nil {
		return errors.New("appointment is nil")
	}

	rowIdx, err := s.FindAppointmentRow(ctx, appt.ID)
	if err != nil {
		if errors.Is(err, errRowNotFound) {
			return s.appendAppointment(ctx, appt)
		}
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:I%d", journalSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{appointmentRowValues(appt)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *JournalService) appendAppointment(ctx context.Context, appt *models.Appointment) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, journalIDRange, &sheets.ValueRange{
		Values: [][]interface{}{appointmentRowValues(appt)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return err
	}
	// the row is looked up again on the next write if the range is missing
	if resp.Updates != nil {
		var row int
		if _, scanErr := fmt.Sscanf(resp.Updates.UpdatedRange, journalSheet+"!A%d:", &row); scanErr == nil && row > 0 {
			s.setCachedRow(appt.ID, row)
		}
	}
	return nil
}

// FindAppointmentRow returns the 1-based row holding id.
func (s *JournalService) FindAppointmentRow(ctx context.Context, id string) (int, error) {
	if id == "" {
		return 0, errors.New("appointment id is required")
	}
	if row, ok := s.getCachedRow(id); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, journalIDRange).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if cellString(row) == id {
			s.setCachedRow(id, i+1)
			return i + 1, nil
		}
	}
	return 0, errRowNotFound
}

// ReplaceJournal rewrites the whole sheet from appts, header included.
func (s *JournalService) ReplaceJournal(ctx context.Context, appts []*models.Appointment) error {
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, journalSheet+"!A:Z", &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear journal sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(appts)+1)
	values = append(values, journalHeaders)
	for _, a := range appts {
		values = append(values, appointmentRowValues(a))
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, journalSheet+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write journal sheet: %w", err)
	}

	s.cacheMu.Lock()
	s.rowCache = make(map[string]int, len(appts))
	for i, a := range appts {
		s.rowCache[a.ID] = i + 2
	}
	s.cacheMu.Unlock()
	return nil
}

func (s *JournalService) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *JournalService) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func cellString(row []interface{}) string {
	if len(row) == 0 {
		return ""
	}
	if v, ok := row[0].(string); ok {
		return v
	}
	return fmt.Sprint(row[0])
}

func appointmentRowValues(appt *models.Appointment) []interface{} {
	return []interface{}{
		appt.ID,
		appt.SalonID,
		appt.ClientID,
		appt.ServiceID,
		appt.ScheduledAt.UTC().Format(time.RFC3339),
		string(appt.Status),
		appt.Version,
		appt.CreatedAt.UTC().Format(rowTimeLayout),
		appt.UpdatedAt.UTC().Format(rowTimeLayout),
	}
}
