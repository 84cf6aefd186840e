package export

import (
	"context"
	"io"
	"testing"
	"time"

	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func setupExporter(t *testing.T) (*Exporter, *database.DB) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.UpsertSalon(context.Background(), &models.Salon{
		ID:       "s1",
		Name:     "Corner",
		Timezone: "UTC",
		Template: models.ScheduleTemplate{OpenTime: "09:00", CloseTime: "12:00", IntervalMinutes: 60},
	}))

	provider := schedule.NewProvider(db, time.UTC, &logger)
	return NewExporter(db, provider, t.TempDir(), &logger), db
}

func TestExport(t *testing.T) {
	exp, db := setupExporter(t)
	ctx := context.Background()

	require.NoError(t, db.CreateAppointment(ctx, &models.Appointment{
		SalonID: "s1", ClientID: "c1", ServiceID: "cut",
		ScheduledAt: time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC), Status: models.StatusConfirmed,
	}))
	require.NoError(t, db.CreateAppointment(ctx, &models.Appointment{
		SalonID: "s1", ClientID: "c2", ServiceID: "color",
		ScheduledAt: time.Date(2030, 3, 5, 10, 0, 0, 0, time.UTC),
	}))

	path, err := exp.Export(ctx, "s1", time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC), time.Date(2030, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, path, "s1_2030-03-04_to_2030-03-05.xlsx")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(listSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, listHeaders[0], rows[0][0])
	assert.Equal(t, "2030-03-04", rows[1][1])
	assert.Equal(t, "09:00", rows[1][2])
	assert.Equal(t, "confirmed", rows[1][5])
	assert.Equal(t, "c2", rows[2][3])

	cell := func(name string) string {
		v, err := f.GetCellValue(scheduleSheet, name)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "09:00", cell("A2"))
	assert.Equal(t, "10:00", cell("A3"))
	assert.Equal(t, "11:00", cell("A4"))
	assert.Equal(t, "04.03 Mon", cell("B1"))
	assert.Equal(t, "c1 (confirmed)", cell("B2"))
	assert.Equal(t, "c2 (pending)", cell("C3"))
	assert.Empty(t, cell("B3"))
}

func TestExportRejectsBadRanges(t *testing.T) {
	exp, _ := setupExporter(t)
	ctx := context.Background()
	day := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)

	_, err := exp.Export(ctx, "s1", day, day.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = exp.Export(ctx, "s1", day, day.AddDate(0, 0, maxExportDays))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = exp.Export(ctx, "missing", day, day)
	assert.ErrorIs(t, err, domain.ErrSalonNotFound)
}
