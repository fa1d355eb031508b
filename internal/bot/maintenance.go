package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/studybot/internal/scheduler"
)

// DailyScheduler is the part of the scheduler the maintenance job needs.
type DailyScheduler interface {
	ScheduleDaily(at scheduler.TimeOfDay, loc *time.Location, payload string, cb scheduler.Callback) (scheduler.JobID, error)
}

// ScheduleMaintenance registers the daily sweep of expired tasks at the
// given wall-clock time in the bot's location.
func (b *Bot) ScheduleMaintenance(s DailyScheduler, at scheduler.TimeOfDay) (scheduler.JobID, error) {
	id, err := s.ScheduleDaily(at, b.loc, JobMaintenance, b.Sweep)
	if err != nil {
		return "", fmt.Errorf("schedule maintenance: %w", err)
	}
	return id, nil
}

// Sweep removes tasks whose deadline is before today. It is the callback of
// the maintenance job.
func (b *Bot) Sweep(ctx context.Context, job scheduler.Job) error {
	removed, err := b.dir.SweepExpired(ctx, b.clock.Now())
	if err != nil {
		return fmt.Errorf("maintenance sweep: %w", err)
	}
	b.logger.Info("expired tasks swept", "removed", removed, "job", job.ID)
	return nil
}
