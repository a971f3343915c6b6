package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/replayer/pkg/replay"
)

const (
	metricStridesTotal   = "replayer.strides.total"
	metricMergeFailures  = "replayer.merge.failures.total"
	metricPushFailures   = "replayer.push.failures.total"
	metricNotifyFailures = "replayer.notify.failures.total"
	metricStrideDuration = "replayer.stride.duration.seconds"
	metricCommitsPending = "replayer.commits.pending"

	attrResult   = "result"
	resultOK     = "ok"
	resultFailed = "failed"
)

// strideBucketBoundaries covers quick fast-forward merges up to multi-minute pushes.
var strideBucketBoundaries = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// ReplayMetrics records replay progress through OTel instruments.
// It implements replay.Recorder.
type ReplayMetrics struct {
	strides        metric.Int64Counter
	mergeFailures  metric.Int64Counter
	pushFailures   metric.Int64Counter
	notifyFailures metric.Int64Counter
	strideDuration metric.Float64Histogram
	pending        metric.Int64Gauge
}

var _ replay.Recorder = (*ReplayMetrics)(nil)

// NewReplayMetrics creates the replay instruments from mt.
func NewReplayMetrics(mt metric.Meter) (*ReplayMetrics, error) {
	strides, err := mt.Int64Counter(metricStridesTotal,
		metric.WithDescription("Strides replayed onto the target branch"),
		metric.WithUnit("{stride}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStridesTotal, err)
	}

	mergeFailures, err := mt.Int64Counter(metricMergeFailures,
		metric.WithDescription("Strides whose merge was aborted"),
		metric.WithUnit("{stride}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMergeFailures, err)
	}

	pushFailures, err := mt.Int64Counter(metricPushFailures,
		metric.WithDescription("Strides whose push failed"),
		metric.WithUnit("{stride}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPushFailures, err)
	}

	notifyFailures, err := mt.Int64Counter(metricNotifyFailures,
		metric.WithDescription("Cache notifications that failed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricNotifyFailures, err)
	}

	duration, err := mt.Float64Histogram(metricStrideDuration,
		metric.WithDescription("Merge and push time per stride"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(strideBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStrideDuration, err)
	}

	pending, err := mt.Int64Gauge(metricCommitsPending,
		metric.WithDescription("Commits not yet covered by a stride"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommitsPending, err)
	}

	return &ReplayMetrics{
		strides:        strides,
		mergeFailures:  mergeFailures,
		pushFailures:   pushFailures,
		notifyFailures: notifyFailures,
		strideDuration: duration,
		pending:        pending,
	}, nil
}

// RecordStride counts the stride and its merge or push failures.
func (rm *ReplayMetrics) RecordStride(ctx context.Context, outcome replay.StrideOutcome) {
	result := resultOK
	if outcome.Merge == replay.StatusFailed || outcome.Push == replay.StatusFailed {
		result = resultFailed
	}

	attrs := metric.WithAttributes(attribute.String(attrResult, result))

	rm.strides.Add(ctx, 1, attrs)
	rm.strideDuration.Record(ctx, outcome.Duration.Seconds(), attrs)

	if outcome.Merge == replay.StatusFailed {
		rm.mergeFailures.Add(ctx, 1)
	}

	if outcome.Push == replay.StatusFailed {
		rm.pushFailures.Add(ctx, 1)
	}
}

// RecordNotify counts failed notifications.
func (rm *ReplayMetrics) RecordNotify(ctx context.Context, err error) {
	if err != nil {
		rm.notifyFailures.Add(ctx, 1)
	}
}

// RecordPending sets the number of commits left to replay.
func (rm *ReplayMetrics) RecordPending(ctx context.Context, remaining int) {
	rm.pending.Record(ctx, int64(remaining))
}
