// Package observe records tuner processing metrics through the OpenTelemetry
// Metrics API.
//
// Tests and the CLI build a [Metrics] with [NewMetrics] on their own
// [metric.MeterProvider].
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cwbudde/algo-tuner/measure/pitch"
)

// meterName is the instrumentation scope name used for all tuner metrics.
const meterName = "github.com/cwbudde/algo-tuner"

// Analysis outcomes recorded on the tuner.analyses counter.
const (
	OutcomePitch   = "pitch"
	OutcomeNoPitch = "no_pitch"
)

// Metrics holds the metric instruments of the tuner pipeline. All fields are
// safe for concurrent use.
type Metrics struct {
	// Blocks counts delivered host blocks.
	Blocks metric.Int64Counter

	// GatedBlocks counts blocks at or below the noise threshold.
	GatedBlocks metric.Int64Counter

	// DroppedBlocks counts blocks discarded for an invalid sample rate.
	DroppedBlocks metric.Int64Counter

	// Analyses counts completed analysis windows. Use with attribute:
	//   attribute.String("outcome", OutcomePitch|OutcomeNoPitch)
	Analyses metric.Int64Counter

	// BlockDuration tracks the wall time spent processing one host block.
	BlockDuration metric.Float64Histogram
}

// blockBuckets defines histogram bucket boundaries (in seconds) around the
// few-millisecond budget of an audio callback.
var blockBuckets = []float64{
	0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Blocks, err = m.Int64Counter("tuner.blocks",
		metric.WithDescription("Host blocks delivered to the tuner."),
	); err != nil {
		return nil, err
	}
	if met.GatedBlocks, err = m.Int64Counter("tuner.blocks.gated",
		metric.WithDescription("Blocks rejected by the noise gate."),
	); err != nil {
		return nil, err
	}
	if met.DroppedBlocks, err = m.Int64Counter("tuner.blocks.dropped",
		metric.WithDescription("Blocks dropped for an invalid sample rate."),
	); err != nil {
		return nil, err
	}
	if met.Analyses, err = m.Int64Counter("tuner.analyses",
		metric.WithDescription("Completed analysis windows by outcome."),
	); err != nil {
		return nil, err
	}
	if met.BlockDuration, err = m.Float64Histogram("tuner.block.duration",
		metric.WithDescription("Processing time of one host block."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(blockBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordBlock records the counter changes caused by one block, given the
// tuner stats before and after it, and the block processing time.
func (m *Metrics) RecordBlock(ctx context.Context, before, after pitch.Stats, elapsed time.Duration) {
	add := func(c metric.Int64Counter, from, to uint64, opts ...metric.AddOption) {
		if to > from {
			c.Add(ctx, int64(to-from), opts...)
		}
	}

	add(m.Blocks, before.Blocks, after.Blocks)
	add(m.GatedBlocks, before.GatedBlocks, after.GatedBlocks)
	add(m.DroppedBlocks, before.DroppedBlocks, after.DroppedBlocks)

	analyses := after.Analyses - before.Analyses
	noPitch := after.NoPitch - before.NoPitch
	add(m.Analyses, noPitch, analyses, metric.WithAttributes(attribute.String("outcome", OutcomePitch)))
	add(m.Analyses, 0, noPitch, metric.WithAttributes(attribute.String("outcome", OutcomeNoPitch)))

	m.BlockDuration.Record(ctx, elapsed.Seconds())
}
