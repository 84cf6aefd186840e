// Package schedule answers which template applies to a salon on a given day.
package schedule

import (
	"context"
	"errors"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

const ReasonWeeklyDayOff = "weekly day off"

type Provider struct {
	salons   domain.SalonRepository
	fallback *time.Location
	logger   *zerolog.Logger
}

var _ domain.TemplateProvider = (*Provider)(nil)

// NewProvider returns a provider that reads salons from repo. fallback is the
// location used for salons without a valid timezone.
func NewProvider(repo domain.SalonRepository, fallback *time.Location, logger *zerolog.Logger) *Provider {
	if fallback == nil {
		fallback = time.UTC
	}
	return &Provider{salons: repo, fallback: fallback, logger: logger}
}

// GetTemplateForDate resolves the schedule for the calendar day of date. Only
// the year, month and day of date are used; they are read in the salon's zone.
// A missing salon yields domain.ErrSalonNotFound; closed days are reported
// through DaySchedule.Closed rather than as an error.
func (p *Provider) GetTemplateForDate(ctx context.Context, salonID string, date time.Time) (models.DaySchedule, error) {
	salon, err := p.salons.GetSalon(ctx, salonID)
	if err != nil {
		if errors.Is(err, domain.ErrSalonNotFound) {
			return models.DaySchedule{}, err
		}
		return models.DaySchedule{}, domain.Backend("get salon", err)
	}

	loc := salon.Location(p.fallback)
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	result := models.DaySchedule{
		SalonID:  salon.ID,
		Date:     day,
		Template: salon.Template,
	}

	closures, err := p.salons.ListClosures(ctx, salonID)
	if err != nil {
		return models.DaySchedule{}, domain.Backend("list closures", err)
	}
	for _, c := range closures {
		if c.Covers(day) {
			result.Closed = true
			result.ClosedReason = c.Reason
			if result.ClosedReason == "" {
				result.ClosedReason = "closed"
			}
			p.logger.Debug().
				Str("salon_id", salonID).
				Str("date", day.Format(models.DateLayout)).
				Str("reason", c.Reason).
				Msg("salon closed by closure period")
			return result, nil
		}
	}

	if salon.ClosedOn(day) {
		result.Closed = true
		result.ClosedReason = ReasonWeeklyDayOff
	}
	return result, nil
}
