// Package otel holds small OpenTelemetry helpers shared by the sync pipeline,
// the store and the workflow activities.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on spans across the application.
const (
	AttrRepositoryID   = attribute.Key("repository.id")
	AttrRepositoryName = attribute.Key("repository.full_name")
	AttrRepoType       = attribute.Key("repository.type")
	AttrSkillName      = attribute.Key("skill.name")
	AttrPluginName     = attribute.Key("plugin.name")
	AttrVersion        = attribute.Key("artifact.version")
	AttrStorageKey     = attribute.Key("storage.key")
	AttrSyncOutcome    = attribute.Key("sync.outcome")
	AttrRegistryName   = attribute.Key("discovery.registry")
	AttrQueryCount     = attribute.Key("discovery.query_count")
	AttrResultCount    = attribute.Key("result.count")
)

// StartSpan starts a span on tracer, or returns the span already in ctx
// when tracer is nil.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks it failed. Nil span or nil err is a no-op.
// The status description stays generic so queries and connection strings
// never end up in the span status.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
