package service

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

// SalonService manages salon schedules and closures.
type SalonService struct {
	repo   domain.SalonRepository
	logger *zerolog.Logger
}

func NewSalonService(repo domain.SalonRepository, logger *zerolog.Logger) *SalonService {
	return &SalonService{repo: repo, logger: logger}
}

func (s *SalonService) GetSalon(ctx context.Context, id string) (*models.Salon, error) {
	salon, err := s.repo.GetSalon(ctx, id)
	if err != nil {
		return nil, domain.Backend("get salon", err)
	}
	return salon, nil
}

func (s *SalonService) ListSalons(ctx context.Context) ([]*models.Salon, error) {
	salons, err := s.repo.ListSalons(ctx)
	if err != nil {
		return nil, domain.Backend("list salons", err)
	}
	return salons, nil
}

// Seed upserts salons loaded from configuration. Existing schedules are overwritten.
func (s *SalonService) Seed(ctx context.Context, salons []models.Salon) error {
	if err := config.ValidateSalons(salons); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
	}
	for i := range salons {
		salon := salons[i]
		if err := s.repo.UpsertSalon(ctx, &salon); err != nil {
			return domain.Backend("upsert salon", err)
		}
	}
	s.logger.Info().Int("count", len(salons)).Msg("salons seeded")
	return nil
}

// UpdateSchedule replaces a salon's template and weekly days off. Existing
// appointments are left untouched.
func (s *SalonService) UpdateSchedule(ctx context.Context, actor models.Actor, salonID string, tpl models.ScheduleTemplate, closedWeekdays []time.Weekday) error {
	if !actor.Manages(salonID) {
		return domain.ErrForbidden
	}
	if err := tpl.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
	}
	for _, wd := range closedWeekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", domain.ErrInvalidSchedule, wd)
		}
	}
	if err := s.repo.UpdateSchedule(ctx, salonID, tpl, closedWeekdays); err != nil {
		return domain.Backend("update schedule", err)
	}
	s.logger.Info().Str("salon_id", salonID).Str("actor_id", actor.ID).Msg("schedule updated")
	return nil
}

func (s *SalonService) ListClosures(ctx context.Context, salonID string) ([]models.ClosurePeriod, error) {
	closures, err := s.repo.ListClosures(ctx, salonID)
	if err != nil {
		return nil, domain.Backend("list closures", err)
	}
	return closures, nil
}

// ReplaceClosures swaps the salon's closure periods for closures.
func (s *SalonService) ReplaceClosures(ctx context.Context, actor models.Actor, salonID string, closures []models.ClosurePeriod) error {
	if !actor.Manages(salonID) {
		return domain.ErrForbidden
	}
	for _, c := range closures {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
		}
	}
	if err := s.repo.ReplaceClosures(ctx, salonID, closures); err != nil {
		return domain.Backend("replace closures", err)
	}
	s.logger.Info().Str("salon_id", salonID).Int("count", len(closures)).Msg("closures replaced")
	return nil
}
