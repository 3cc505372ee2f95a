package config

// ObservabilityConfig toggles OTel instrumentation. Collector endpoint and
// auth are configured through the standard OTEL_EXPORTER_OTLP_* env vars
// that pkg/observability reads directly, per OTel convention.
type ObservabilityConfig struct {
	Enabled     bool   `env:"SHOTPOOL_OTEL_ENABLED" default:"false"`
	ServiceName string `env:"SHOTPOOL_OTEL_SERVICE_NAME" default:"screenshotd"`
}
