// Package logging provides structured logging for audienced.
//
// Logger wraps zap with:
//   - a Trace level (-2, below Debug) for per-toggle engine output
//   - stdout and OpenTelemetry outputs (otelzap bridge)
//   - context correlation fields: trace_id, request.id, content.kind/id
//   - key-based redaction of tokens
//   - sampling below Error
//
// Usage:
//
//	cfg, err := logging.NewConfig(appCfg.Logging)
//	logger, err := logging.NewLogger(cfg, nil)
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, id)
//	logger.Info(ctx, "selection saved", zap.Int("selected", n))
package logging
