package factory

import (
	"github.com/mikey/llm-daily-brief/internal/adapters/api"
	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/ports"
	"github.com/mikey/llm-daily-brief/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// RunnerFactory creates the long-running components of the daemon
type RunnerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRunnerFactory creates a new runner factory
func NewRunnerFactory(cfg *config.Config, logger *zap.Logger) *RunnerFactory {
	return &RunnerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateAPIServer creates the HTTP API, or nil when server.enabled is false
func (f *RunnerFactory) CreateAPIServer(
	briefs *core.BriefService,
	feedback *core.FeedbackService,
	gatherer prometheus.Gatherer,
) ports.Runner {
	serverCfg := f.cfg.GetServer()
	if !serverCfg.Enabled {
		return nil
	}
	return api.NewServer(serverCfg.ListenAddress, briefs, feedback, gatherer, f.logger)
}

// CreateScheduler creates the daily job scheduler, or nil when brief.schedule is empty
func (f *RunnerFactory) CreateScheduler(briefs *core.BriefService) ports.Runner {
	spec := f.cfg.GetBrief().Schedule
	if spec == "" {
		return nil
	}
	return scheduler.NewScheduler(spec, briefs, f.logger)
}
