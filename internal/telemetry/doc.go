// Package telemetry wires OpenTelemetry tracing and metrics for audienced.
//
// Spans and metrics go to an OTLP collector over gRPC or HTTP. When the
// collector is unreachable at startup the instance degrades to the global
// no-op providers and Health reports why.
//
//	tel, err := telemetry.New(ctx, telemetry.NewConfig(cfg.Observability, version))
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := tel.Tracer("audienced/selectionsvc").Start(ctx, "selection.save")
//	defer span.End()
package telemetry
