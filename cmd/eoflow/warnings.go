package main

import (
	"log/slog"

	"github.com/djlord-it/eoflow/internal/config"
)

// logConfigWarnings flags configurations that boot but are probably not what
// the operator wants.
func logConfigWarnings(cfg config.Config, logger *slog.Logger) {
	if !cfg.StatePersist {
		logger.Warn("eoflow: STATE_PERSIST=false; jobs, workflows and schedules are lost on restart")
	}
	if !cfg.SchedulerEnabled && cfg.SchedulerToken == "" {
		logger.Warn("eoflow: SCHEDULER_ENABLED=false and SCHEDULER_TOKEN unset; schedules only run when triggered manually")
	} else if cfg.SchedulerToken == "" {
		logger.Info("eoflow: SCHEDULER_TOKEN not set; schedule callbacks disabled")
	}
	if cfg.RemoteEnabled && cfg.RemoteAPIKey == "" {
		logger.Warn("eoflow: REMOTE_API_KEY not set; remote requests are unauthenticated")
	}
	if !cfg.RemoteEnabled {
		logger.Info("eoflow: REMOTE_ENABLED=false; processes run locally")
	}
	if !cfg.MetricsEnabled {
		logger.Info("eoflow: METRICS_ENABLED not set; metrics disabled")
	}
}
