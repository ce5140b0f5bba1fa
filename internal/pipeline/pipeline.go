// Package pipeline runs a scoring batch: filter listings, summarize nearby
// amenities, merge, compute affordability, normalize and rank.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/homescore/internal/feature"
	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/listing"
	"github.com/sells-group/homescore/internal/model"
	"github.com/sells-group/homescore/internal/monitoring"
	"github.com/sells-group/homescore/internal/scorer"
)

// DefaultMedianIncome is the median full-time employment income used for
// the price-to-income ratio when none is configured.
const DefaultMedianIncome = 65000

// Summarizer resolves amenity summaries for a batch of coordinates, one
// per input coordinate and in the same order.
type Summarizer interface {
	SummarizeAll(ctx context.Context, coords []geo.Coordinate) ([]model.AmenitySummary, error)
}

// Options controls a batch.
type Options struct {
	// Filter is applied when Filtered is set.
	Filter   listing.Filter
	Filtered bool
	// Features defaults to feature.All.
	Features []string
	// Weights are matched by position to Features; nil means uniform.
	Weights      []float64
	MedianIncome float64
}

// Result is the outcome of one batch.
type Result struct {
	RunID string
	// Loaded counts listings handed to Run; Considered counts those left
	// after filtering.
	Loaded        int
	Considered    int
	Summaries     []model.AmenitySummary
	Ranked        []model.ScoredListing
	Dropped       int
	FetchFailures int
	Features      []string
	Duration      time.Duration
}

// Pipeline scores listing batches.
type Pipeline struct {
	summarizer Summarizer
	metrics    *monitoring.Metrics
	opts       Options
}

// New creates a Pipeline. metrics may be nil.
func New(summarizer Summarizer, opts Options, metrics *monitoring.Metrics) (*Pipeline, error) {
	if summarizer == nil {
		return nil, eris.New("pipeline: summarizer is required")
	}
	if len(opts.Features) == 0 {
		opts.Features = append([]string(nil), feature.All...)
	}
	if err := feature.Validate(opts.Features); err != nil {
		return nil, err
	}
	if opts.Weights != nil {
		if err := scorer.ValidateWeights(opts.Features, opts.Weights); err != nil {
			return nil, err
		}
	}
	if opts.MedianIncome == 0 {
		opts.MedianIncome = DefaultMedianIncome
	}
	return &Pipeline{summarizer: summarizer, metrics: metrics, opts: opts}, nil
}

// RunFile reads listings from path and runs a batch over them.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Result, error) {
	rows, err := listing.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, rows)
}

// Run scores listings. The input slice is not modified.
func (p *Pipeline) Run(ctx context.Context, listings []model.Listing) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:    uuid.New().String(),
		Loaded:   len(listings),
		Features: p.opts.Features,
	}
	log := zap.L().With(zap.String("run_id", res.RunID))
	log.Info("pipeline: starting batch", zap.Int("listings", len(listings)))

	rows := listings
	if p.opts.Filtered {
		rows = p.opts.Filter.Apply(listings)
	}
	res.Considered = len(rows)
	if len(rows) == 0 {
		log.Warn("pipeline: no listings to score")
		res.Duration = time.Since(start)
		return res, nil
	}

	summaries, err := p.summarizer.SummarizeAll(ctx, listing.Coordinates(rows))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: summarize amenities")
	}
	if len(summaries) != len(rows) {
		return nil, eris.Errorf("pipeline: got %d summaries for %d listings", len(summaries), len(rows))
	}
	res.Summaries = summaries
	for _, s := range summaries {
		if s.Status == model.SummaryFetchFailed {
			res.FetchFailures++
		}
	}

	merged := listing.Merge(rows, summaries)
	if err := listing.ApplyPriceToIncome(merged, p.opts.MedianIncome); err != nil {
		return nil, err
	}

	normalized, err := feature.Normalize(merged, p.opts.Features)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: normalize")
	}
	res.Dropped = len(merged) - len(normalized)

	ranked, err := scorer.Rank(normalized, p.opts.Features, p.opts.Weights)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: rank")
	}
	res.Ranked = ranked
	res.Duration = time.Since(start)

	p.metrics.AddListings(len(ranked), res.Dropped)
	log.Info("pipeline: batch complete",
		zap.Int("considered", res.Considered),
		zap.Int("scored", len(ranked)),
		zap.Int("dropped", res.Dropped),
		zap.Int("fetch_failures", res.FetchFailures),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}
