package service

import (
	"context"

	"dnswatch/internal/storage"
	"dnswatch/internal/utils"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	Cron     *cron.Cron
	Storage  *storage.Storage
	Monitor  *MonitorService
	Schedule string
}

func NewScheduler(s *storage.Storage, monitor *MonitorService, schedule string) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(),
		Storage:  s,
		Monitor:  monitor,
		Schedule: schedule,
	}
}

func (s *Scheduler) Start() {
	if _, err := s.Cron.AddFunc(s.Schedule, s.RunMonitorJob); err != nil {
		utils.Log.Error("invalid cron schedule", utils.Field("schedule", s.Schedule), utils.Field("error", err.Error()))
		return
	}
	s.Cron.Start()
	utils.Log.Info("scheduler started", utils.Field("schedule", s.Schedule))
}

func (s *Scheduler) Stop() {
	s.Cron.Stop()
}

// RunMonitorJob executes one check cycle over the stored watch list.
func (s *Scheduler) RunMonitorJob() {
	ctx := context.Background()
	specs, err := s.Storage.GetWatchedDomains(ctx)
	if err != nil {
		utils.Log.Error("scheduler failed to load watch list", utils.Field("error", err.Error()))
		return
	}
	if len(specs) == 0 {
		utils.Log.Debug("watch list is empty, nothing to check")
		return
	}

	utils.Log.Info("starting check cycle", utils.Field("domains", len(specs)))
	results := s.Monitor.RunCycle(ctx, specs)

	changed := 0
	for _, r := range results {
		if r.HasChanged && !r.IsFirstCheck {
			changed++
		}
	}
	utils.Log.Info("check cycle finished",
		utils.Field("checked", len(results)),
		utils.Field("changed", changed))
}
