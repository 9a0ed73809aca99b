// Package orchestrator drives a comparison run: fetch both sides for each
// resource type, compare, and emit one report section per type.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/towercmp/internal/filter"
	"github.com/yairfalse/towercmp/internal/report"
	"github.com/yairfalse/towercmp/internal/source"
	"github.com/yairfalse/towercmp/pkg/resource"
)

// ErrIncomplete is returned when continue-on-error skipped resource types.
var ErrIncomplete = errors.New("comparison incomplete")

// findingKinds lists every kind in reporting order.
var findingKinds = []report.FindingKind{
	report.FindingHostCount,
	report.FindingDetail,
	report.FindingLeftOnly,
	report.FindingRightOnly,
	report.FindingDuplicate,
	report.FindingError,
}

// Orchestrator coordinates fetch → compare → emit.
type Orchestrator struct {
	left, right     source.Source
	sink            report.Sink
	types           []resource.Type
	continueOnError bool
	filter          *filter.Filter
	recorder        Recorder
	tracer          trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTypes restricts the run to types, in the order given.
func WithTypes(types []resource.Type) Option {
	return func(o *Orchestrator) { o.types = types }
}

// WithContinueOnError keeps going after a resource type fails.
func WithContinueOnError(enabled bool) Option {
	return func(o *Orchestrator) { o.continueOnError = enabled }
}

// WithFilter drops excluded resources from both sides before comparing.
func WithFilter(f *filter.Filter) Option {
	return func(o *Orchestrator) { o.filter = f }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// New creates an orchestrator comparing left against right.
func New(left, right source.Source, sink report.Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		left:     left,
		right:    right,
		sink:     sink,
		types:    resource.AllTypes,
		recorder: nopRecorder{},
		tracer:   otel.Tracer("github.com/yairfalse/towercmp/internal/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sides returns the source names used in report messages.
func (o *Orchestrator) Sides() resource.Sides {
	return resource.Sides{Left: o.left.Name(), Right: o.right.Name()}
}

// Run compares every configured resource type. Without continue-on-error
// the first failure stops the run and is returned; sections already
// emitted stay in the report.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{
		StartTime: time.Now(),
		Findings:  make(map[report.FindingKind]int),
		Success:   true,
	}

	log.Info().Ctx(ctx).
		Str("left", o.left.Name()).
		Str("right", o.right.Name()).
		Int("types", len(o.types)).
		Msg("starting comparison")

	for _, t := range o.types {
		if err := ctx.Err(); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, err.Error())
			return o.finishRun(result), err
		}

		section, err := o.compareType(ctx, t)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, err.Error())
			if !o.continueOnError {
				return o.finishRun(result), err
			}

			log.Error().Ctx(ctx).
				Err(err).
				Str("resource_type", string(t)).
				Msg("resource type failed, continuing")
			result.Failed = append(result.Failed, t)
			section = report.Failed(t, o.Sides(), err)
		} else {
			result.Compared = append(result.Compared, t)
		}

		o.recordFindings(ctx, section, result)
		if err := o.sink.Emit(ctx, section); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, err.Error())
			return o.finishRun(result), fmt.Errorf("emit %s: %w", t, err)
		}
	}

	o.finishRun(result)
	if len(result.Failed) > 0 {
		return result, fmt.Errorf("%w: %d of %d resource types failed", ErrIncomplete, len(result.Failed), len(o.types))
	}
	return result, nil
}

func (o *Orchestrator) compareType(ctx context.Context, t resource.Type) (report.Section, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.compare",
		trace.WithAttributes(attribute.String("resource_type", string(t))),
	)
	defer span.End()

	left, err := o.fetch(ctx, o.left, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return report.Section{}, err
	}
	right, err := o.fetch(ctx, o.right, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return report.Section{}, err
	}

	section := report.Compare(t, left, right, o.Sides())
	span.SetAttributes(attribute.Int("findings", len(section.Findings)))
	return section, nil
}

func (o *Orchestrator) fetch(ctx context.Context, src source.Source, t resource.Type) (*resource.Collection, error) {
	coll, err := src.Fetch(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("fetch %s from %s: %w", t, src.Name(), err)
	}
	o.recorder.RecordResourceCount(ctx, src.Name(), t, coll.Len())
	if o.filter != nil {
		coll = o.filter.Apply(coll)
	}
	return coll, nil
}

func (o *Orchestrator) recordFindings(ctx context.Context, s report.Section, result *RunResult) {
	for _, k := range findingKinds {
		n := s.Count(k)
		if n == 0 {
			continue
		}
		result.Findings[k] += n
		o.recorder.RecordFindings(ctx, s.Type, string(k), n)
	}
}

func (o *Orchestrator) finishRun(result *RunResult) *RunResult {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	log.Info().
		Int("compared", len(result.Compared)).
		Int("failed", len(result.Failed)).
		Int("findings", result.TotalFindings()).
		Dur("duration", result.Duration).
		Bool("success", result.Success).
		Msg("comparison complete")

	return result
}
