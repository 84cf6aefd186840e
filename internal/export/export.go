// Package export writes salon appointments to XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/slots"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	listSheet     = "Appointments"
	scheduleSheet = "Schedule"
	cellTime      = "2006-01-02 15:04"
)

// maxExportDays bounds the schedule sheet width.
const maxExportDays = 62

var listHeaders = []string{"ID", "Date", "Time", "Client", "Service", "Status", "Version", "Created At"}

var statusColors = map[models.Status]string{
	models.StatusPending:   "#FFF2CC",
	models.StatusConfirmed: "#E2EFDA",
	models.StatusCompleted: "#DDEBF7",
	models.StatusCancelled: "#F2F2F2",
	models.StatusNoShow:    "#F8CBAD",
}

type Exporter struct {
	appointments domain.AppointmentRepository
	templates    domain.TemplateProvider
	dir          string
	logger       *zerolog.Logger
}

func NewExporter(appointments domain.AppointmentRepository, templates domain.TemplateProvider, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{appointments: appointments, templates: templates, dir: dir, logger: logger}
}

// Export writes every appointment of salonID between the calendar dates from
// and to (inclusive, salon time) and returns the file path.
func (e *Exporter) Export(ctx context.Context, salonID string, from, to time.Time) (string, error) {
	first, err := e.templates.GetTemplateForDate(ctx, salonID, from)
	if err != nil {
		return "", err
	}
	loc := first.Location()
	start := first.Date
	end := models.EndOfDay(time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc), loc)
	if end.Before(start) {
		return "", fmt.Errorf("%w: export range ends before it starts", domain.ErrInvalidRequest)
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > maxExportDays {
		return "", fmt.Errorf("%w: export range of %d days exceeds %d", domain.ErrInvalidRequest, days, maxExportDays)
	}

	appts, err := e.appointments.ListAppointments(ctx, salonID, start, end, nil)
	if err != nil {
		return "", domain.Backend("list appointments", err)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", listSheet)
	if err := writeList(f, appts, loc); err != nil {
		return "", err
	}
	if _, err := f.NewSheet(scheduleSheet); err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	if err := e.writeSchedule(ctx, f, salonID, start, end, appts); err != nil {
		return "", err
	}

	fileName := fmt.Sprintf("%s_%s_to_%s.xlsx", salonID, start.Format(models.DateLayout), end.Format(models.DateLayout))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("appointments", len(appts)).Msg("export created")
	return filePath, nil
}

func writeList(f *excelize.File, appts []*models.Appointment, loc *time.Location) error {
	for i, h := range listHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(listSheet, cell, h); err != nil {
			return err
		}
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		lastCell, _ := excelize.CoordinatesToCellName(len(listHeaders), 1)
		_ = f.SetCellStyle(listSheet, "A1", lastCell, header)
	}

	for i, a := range appts {
		local := a.ScheduledAt.In(loc)
		row := []interface{}{
			a.ID,
			local.Format(models.DateLayout),
			models.TimeOfDayOf(local).String(),
			a.ClientID,
			a.ServiceID,
			string(a.Status),
			a.Version,
			a.CreatedAt.In(loc).Format(cellTime),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(listSheet, cell, &row); err != nil {
			return fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(listSheet, "A", "A", 38)
	_ = f.SetColWidth(listSheet, "B", "H", 16)
	return nil
}

// writeSchedule lays out one column per day and one row per slot time. Busy
// cells show the client and are colored by status.
func (e *Exporter) writeSchedule(ctx context.Context, f *excelize.File, salonID string, start, end time.Time, appts []*models.Appointment) error {
	loc := start.Location()

	type cellKey struct {
		date string
		tod  models.TimeOfDay
	}
	booked := make(map[cellKey]*models.Appointment)
	for _, a := range appts {
		if !a.Status.Occupies() && a.Status != models.StatusNoShow {
			continue
		}
		local := a.ScheduledAt.In(loc)
		booked[cellKey{local.Format(models.DateLayout), models.TimeOfDayOf(local)}] = a
	}

	var (
		days     []models.DaySchedule
		rowTimes = make(map[models.TimeOfDay]bool)
	)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day, err := e.templates.GetTemplateForDate(ctx, salonID, d)
		if err != nil {
			return err
		}
		days = append(days, day)
		if day.Closed {
			continue
		}
		for _, t := range slots.Grid(day.Template) {
			rowTimes[t] = true
		}
	}
	for k := range booked {
		rowTimes[k.tod] = true
	}

	times := make([]models.TimeOfDay, 0, len(rowTimes))
	for t := range rowTimes {
		times = append(times, t)
	}
	slices.Sort(times)
	rowOf := make(map[models.TimeOfDay]int, len(times))
	for i, t := range times {
		rowOf[t] = i + 2
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetCellValue(scheduleSheet, cell, t.String())
	}

	styles := make(map[models.Status]int, len(statusColors))
	for st, color := range statusColors {
		id, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}})
		if err == nil {
			styles[st] = id
		}
	}

	for i, day := range days {
		col := i + 2
		key := day.Date.Format(models.DateLayout)
		header, _ := excelize.CoordinatesToCellName(col, 1)
		label := day.Date.Format("02.01 Mon")
		if day.Closed {
			label += " (" + day.ClosedReason + ")"
		}
		_ = f.SetCellValue(scheduleSheet, header, label)

		for t, row := range rowOf {
			a, ok := booked[cellKey{key, t}]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(scheduleSheet, cell, fmt.Sprintf("%s (%s)", a.ClientID, a.Status))
			if style, ok := styles[a.Status]; ok {
				_ = f.SetCellStyle(scheduleSheet, cell, cell, style)
			}
		}
	}

	_ = f.SetColWidth(scheduleSheet, "A", "A", 8)
	if len(days) > 0 {
		last, _ := excelize.ColumnNumberToName(len(days) + 1)
		_ = f.SetColWidth(scheduleSheet, "B", last, 20)
	}
	return nil
}
