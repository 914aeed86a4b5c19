// Package telemetry starts boxd's OpenTelemetry tracer and meter providers
// and exports them over OTLP, by gRPC or HTTP.
//
// boxd keeps running when a collector is unreachable: the failed
// component is reported by Health and the global no-op provider takes its
// place. The "telemetry" config section drives it:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: "grpc"   # or "http/protobuf"
//	  service_name: "boxd"
//	  sampling:
//	    rate: 0.25
//	  metrics:
//	    enabled: true
//	    export_interval: "15s"
//
// The HTTP API takes its request instruments from MeterProvider. Module
// counters stay on Prometheus.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("boxd.test").Start(ctx, "module.start")
//	span.End()
//	tt.AssertSpanExists(t, "module.start")
package telemetry
