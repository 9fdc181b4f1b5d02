package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
)

var pipelineTracer = otel.Tracer("pipeline")

// View pipelines run in four stages:
//
//	skeleton     - fetch the page spine (URIs and ordering), cursor included
//	hydration    - bulk-load everything the skeleton references
//	rules        - apply visibility decisions; pure, no I/O
//	presentation - assemble the response views
//
// Keeping rules pure makes every visibility decision unit-testable without a
// store, and keeps accidental per-item queries out of the hot path.

type PipelineParams struct {
	Viewer string
	Page   PageOpts
}

type SkeletonFn[S any] func(ctx context.Context, params PipelineParams) (S, error)

type HydrationFn[S, H any] func(ctx context.Context, params PipelineParams, skeleton S) (H, error)

// RulesFn must not perform I/O. It may return a reduced skeleton but never a
// different cursor: the cursor always reflects the unfiltered batch boundary.
type RulesFn[S, H any] func(params PipelineParams, skeleton S, hydration H) S

type PresentationFn[S, H, V any] func(params PipelineParams, skeleton S, hydration H) V

// Compose chains the four stages into a single callable view.
func Compose[S, H, V any](
	name string,
	skeleton SkeletonFn[S],
	hydration HydrationFn[S, H],
	rules RulesFn[S, H],
	presentation PresentationFn[S, H, V],
) func(ctx context.Context, params PipelineParams) (V, error) {
	return func(ctx context.Context, params PipelineParams) (V, error) {
		ctx, span := pipelineTracer.Start(ctx, "Pipeline."+name)
		defer span.End()

		var zero V
		skel, err := skeleton(ctx, params)
		if err != nil {
			span.RecordError(err)
			return zero, err
		}
		hyd, err := hydration(ctx, params, skel)
		if err != nil {
			span.RecordError(err)
			return zero, err
		}
		if rules != nil {
			skel = rules(params, skel, hyd)
		}
		return presentation(params, skel, hyd), nil
	}
}

// NoRules passes the skeleton through unchanged.
func NoRules[S, H any](params PipelineParams, skeleton S, hydration H) S {
	return skeleton
}
