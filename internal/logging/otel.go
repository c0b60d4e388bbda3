package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newCore tees the stdout (or Writer) core and the OTEL bridge core, then
// wraps the result in the sampler.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, 2)

	if cfg.Output.Stdout || cfg.Output.Writer != nil {
		var encoder zapcore.Encoder = newEncoder(cfg.Format)
		if cfg.Redaction.Enabled {
			encoder = NewRedactingEncoder(encoder, cfg.Redaction.Fields)
		}
		var ws zapcore.WriteSyncer = zapcore.Lock(os.Stdout)
		if cfg.Output.Writer != nil {
			ws = cfg.Output.Writer
		}
		cores = append(cores, zapcore.NewCore(encoder, ws, cfg.Level))
	}

	if cfg.Output.OTEL && otelProvider != nil {
		cores = append(cores, otelzap.NewCore("github.com/fyrsmithlabs/audienced",
			otelzap.WithLoggerProvider(otelProvider),
		))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one output must be enabled and available")
	}

	core := cores[0]
	if len(cores) > 1 {
		core = zapcore.NewTee(cores...)
	}
	return newSampledCore(core, cfg.Sampling), nil
}
