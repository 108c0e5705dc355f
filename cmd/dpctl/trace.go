package main

import (
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/pg-sharding/dataplane/pkg/config"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	jaegerlog "github.com/uber/jaeger-client-go/log"
	"github.com/uber/jaeger-lib/metrics"
)

// initJaegerTracer installs a global tracer reporting the client's write and
// query spans. Without a configured url spans stay on the noop tracer.
func initJaegerTracer(cfg config.JaegerCfg) (io.Closer, error) {
	if cfg.JaegerUrl == "" {
		return io.NopCloser(nil), nil
	}
	jcfg := jaegercfg.Configuration{
		ServiceName: "dpctl",
		Sampler: &jaegercfg.SamplerConfig{
			Type:              "const",
			Param:             1,
			SamplingServerURL: cfg.JaegerUrl,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans: false,
		},
		Gen128Bit: true,
		Tags: []opentracing.Tag{
			{Key: "span.kind", Value: "client"},
		},
	}

	return jcfg.InitGlobalTracer(
		"dpctl",
		jaegercfg.Logger(jaegerlog.NullLogger),
		jaegercfg.Metrics(metrics.NullFactory),
	)
}
