// Package scheduler runs periodic background jobs on cron schedules
// (github.com/robfig/cron/v3), logging through slog.
//
// The serve command uses it to re-read the message catalog:
//
//	s := scheduler.New(ctx, scheduler.Config{Logger: log})
//	_, err := s.AddJob("@every 1m", func(ctx context.Context) error {
//		return catalog.Reload()
//	}, scheduler.JobOptions{Name: "catalog-reload"})
//	s.Start()
//	defer s.Stop(context.Background())
//
// A run that is still in progress when the next one is due makes the
// scheduler skip that run. Panics in jobs are recovered and logged.
package scheduler
