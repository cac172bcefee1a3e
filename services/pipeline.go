package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rfm-segmenter/config"
	"rfm-segmenter/models"
	"rfm-segmenter/utils"
)

// PipelineOptions configures the stages of a Pipeline.
type PipelineOptions struct {
	DateLayouts      []string
	NegativeMonetary string
	Segments         *config.SegmentTable
}

// Pipeline chains clean → aggregate → score → prepare.
type Pipeline struct {
	logger     *utils.Logger
	metrics    *Metrics
	cleaner    *Cleaner
	aggregator *Aggregator
	scorer     *Scorer
	preparer   *FeaturePreparer
}

// NewPipeline wires every stage to the same logger and metrics.
func NewPipeline(logger *utils.Logger, metrics *Metrics, opts PipelineOptions) *Pipeline {
	if metrics == nil {
		metrics = NewMetrics()
	}
	layouts := opts.DateLayouts
	if len(layouts) == 0 {
		layouts = config.DefaultDateLayouts
	}
	return &Pipeline{
		logger:     logger,
		metrics:    metrics,
		cleaner:    NewCleaner(logger, metrics, layouts),
		aggregator: NewAggregator(logger, metrics),
		scorer:     NewScorer(logger, metrics, opts.Segments),
		preparer:   NewFeaturePreparer(logger, metrics, opts.NegativeMonetary),
	}
}

// Metrics returns the metrics the pipeline reports into.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

// Run executes every stage on raw. A nil raw input is the "nothing fetched"
// case: the result carries only the run id and no error is returned.
func (p *Pipeline) Run(ctx context.Context, raw []*models.RawTransaction) (*models.PipelineResult, error) {
	start := time.Now()
	result := &models.PipelineResult{RunID: uuid.NewString()}
	p.logger.Info("=== RFM pipeline run %s starting ===", result.RunID)

	if raw == nil {
		p.logger.Warn("[pipeline] No data available. Nothing to do.")
		return result, nil
	}

	done := p.track("clean")
	cleaned, stats := p.cleaner.Clean(raw)
	done()
	result.Clean = stats
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", result.RunID, err)
	}
	if len(cleaned) == 0 {
		p.logger.Error("[pipeline] All transactions were dropped during cleaning")
	}

	ref, err := ReferenceDate(cleaned)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: aggregate: %w", result.RunID, err)
	}
	result.ReferenceDate = ref

	done = p.track("aggregate")
	customers := p.aggregator.AggregateAt(cleaned, ref)
	done()
	result.Customers = customers
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", result.RunID, err)
	}

	done = p.track("score")
	scored, scoreStats, err := p.scorer.Score(customers)
	done()
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", result.RunID, err)
	}
	result.Scored = scored
	result.Score = scoreStats
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", result.RunID, err)
	}

	done = p.track("features")
	features, err := p.preparer.Prepare(scored)
	done()
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", result.RunID, err)
	}
	result.Features = features

	result.Duration = time.Since(start)
	p.logger.Info("=== RFM pipeline run %s finished in %v ===", result.RunID, result.Duration)
	return result, nil
}

// track starts timing stage; the returned func records the elapsed time.
func (p *Pipeline) track(stage string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		p.metrics.StageSeconds.WithLabelValues(stage).Set(elapsed.Seconds())
		p.logger.Debug("[pipeline] %s took %v", stage, elapsed)
	}
}
