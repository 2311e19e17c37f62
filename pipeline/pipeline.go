package pipeline

import (
	"context"
	"fmt"
	"time"

	"cmc_performance/cmc"
	"cmc_performance/config"
	"cmc_performance/metrics"
	"cmc_performance/middleware"
	"cmc_performance/store"
	"cmc_performance/utils"

	"github.com/google/uuid"
)

// Run identifies one pass through the pipeline.
type Run struct {
	ID        string
	StartedAt time.Time
	clock     func() time.Time
}

// Now is the capture time used for timestamps written by a stage.
func (r *Run) Now() time.Time { return r.clock() }

// Stage is one closed step. It reads its input from the store and writes
// its output back to it.
type Stage interface {
	Name() string
	Run(ctx context.Context, run *Run) error
}

type Pipeline struct {
	stages          []Stage
	metrics         *metrics.Metrics
	metricsTextfile string
	clock           func() time.Time
}

// New wires the fetch, pricing, performance and average stages.
func New(cfg *config.Config, s *store.Store, m *metrics.Metrics) *Pipeline {
	client := cmc.NewClient(cfg, m)
	return NewWithStages(m, cfg.Metrics.Textfile,
		&FetchStage{Fetcher: client, Store: s, Metrics: m},
		&PricingStage{Store: s, TrackedPath: cfg.Storage.TrackedCoinsPath, Metrics: m},
		&PerformanceStage{Store: s, TrackedPath: cfg.Storage.TrackedCoinsPath, Metrics: m},
		&AverageStage{Store: s, WarnThreshold: cfg.Storage.HistoryWarnThreshold, Metrics: m},
	)
}

func NewWithStages(m *metrics.Metrics, metricsTextfile string, stages ...Stage) *Pipeline {
	return &Pipeline{
		stages:          stages,
		metrics:         m,
		metricsTextfile: metricsTextfile,
		clock:           time.Now,
	}
}

// StageNames lists the stages in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, 0, len(p.stages))
	for _, st := range p.stages {
		names = append(names, st.Name())
	}
	return names
}

// Run executes every stage in order and stops at the first failure.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.run(ctx, p.stages)
}

// RunStage executes a single stage by name.
func (p *Pipeline) RunStage(ctx context.Context, name string) error {
	for _, st := range p.stages {
		if st.Name() == name {
			return p.run(ctx, []Stage{st})
		}
	}
	return fmt.Errorf("unknown stage %q, expected one of %v", name, p.StageNames())
}

func (p *Pipeline) run(ctx context.Context, stages []Stage) error {
	run := &Run{ID: uuid.NewString(), StartedAt: p.clock(), clock: p.clock}
	utils.Logger.Infow("Pipeline run started", "run_id", run.ID, "stages", len(stages))

	defer func() {
		if err := p.metrics.WriteTextfile(p.metricsTextfile); err != nil {
			utils.Error(err, "Failed to write metrics", "run_id", run.ID)
		}
	}()

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline cancelled before %s: %w", st.Name(), err)
		}

		utils.Logger.Infow("Running stage", "run_id", run.ID, "stage", st.Name())
		start := time.Now()
		err := middleware.Recover(st.Name(), func() error {
			return st.Run(ctx, run)
		})
		p.metrics.RecordStage(st.Name(), time.Since(start), err)

		if err != nil {
			utils.Error(err, "Stage failed, aborting run",
				"run_id", run.ID,
				"stage", st.Name())
			return fmt.Errorf("stage %s: %w", st.Name(), err)
		}
	}

	p.metrics.MarkSuccess(p.clock())
	utils.Logger.Infow("Pipeline run completed",
		"run_id", run.ID,
		"duration_ms", time.Since(run.StartedAt).Milliseconds())
	return nil
}
