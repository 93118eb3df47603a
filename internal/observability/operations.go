package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the tracer name for csx core operations.
	TracerName = "github.com/willibrandon/csx"
)

// Common attribute keys
const (
	AttrPackageID      = attribute.Key("csx.package.id")
	AttrPackageVersion = attribute.Key("csx.package.version")
	AttrSourceURL      = attribute.Key("csx.source.url")
	AttrRuntime        = attribute.Key("csx.runtime")
	AttrOperation      = attribute.Key("csx.operation")
	AttrCacheHit       = attribute.Key("csx.cache.hit")
	AttrRetryCount     = attribute.Key("csx.retry.count")
)

// StartPackageDownloadSpan starts a span bracketing a single archive fetch (C2/C6).
func StartPackageDownloadSpan(ctx context.Context, packageID, version, sourceURL string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "package.download",
		trace.WithAttributes(
			AttrPackageID.String(packageID),
			AttrPackageVersion.String(version),
			AttrSourceURL.String(sourceURL),
			AttrOperation.String("download"),
		),
	)
}

// StartCacheLookupSpan starts a span for a cache-entry validity check (C6).
func StartCacheLookupSpan(ctx context.Context, cacheKey string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "cache.lookup",
		trace.WithAttributes(
			attribute.String("cache.key", cacheKey),
		),
	)
}

// RecordCacheHit records cache hit/miss on the current span.
func RecordCacheHit(ctx context.Context, hit bool) {
	SetAttributes(ctx, AttrCacheHit.Bool(hit))
}

// StartDirectiveParseSpan starts a span for scanning a script's directives (C1).
func StartDirectiveParseSpan(ctx context.Context, sourceBytes int) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "directive.parse",
		trace.WithAttributes(
			attribute.Int("source.bytes", sourceBytes),
			AttrOperation.String("parse"),
		),
	)
}

// StartDependencyResolutionSpan starts a span for one package's manifest/dependency fetch (C3).
func StartDependencyResolutionSpan(ctx context.Context, packageID, runtime string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "dependency.resolve",
		trace.WithAttributes(
			AttrPackageID.String(packageID),
			AttrRuntime.String(runtime),
			AttrOperation.String("resolve"),
		),
	)
}

// StartWalkSpan starts a span bracketing the full breadth-first walk (C5).
func StartWalkSpan(ctx context.Context, seedCount int) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "resolve.walk",
		trace.WithAttributes(
			attribute.Int("seed.count", seedCount),
		),
	)
}

// StartArtifactSelectionSpan starts a span for selecting binaries out of one cache entry (C7).
func StartArtifactSelectionSpan(ctx context.Context, packageID, runtime string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "artifacts.select",
		trace.WithAttributes(
			AttrPackageID.String(packageID),
			AttrRuntime.String(runtime),
		),
	)
}

// StartOrchestrationSpan starts a span bracketing a full Resolve call (C8).
func StartOrchestrationSpan(ctx context.Context, refCount int) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "resolve.orchestrate",
		trace.WithAttributes(
			attribute.Int("ref.count", refCount),
			AttrOperation.String("orchestrate"),
		),
	)
}

// RecordRetry records a retry attempt on the current span.
func RecordRetry(ctx context.Context, attempt int, err error) {
	span := SpanFromContext(ctx)
	span.AddEvent("retry",
		trace.WithAttributes(
			attribute.Int("retry.attempt", attempt),
			attribute.String("retry.error", err.Error()),
		),
	)
}

// EndSpanWithError ends a span with an error status.
func EndSpanWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
