package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/towercmp/internal/config"
	"github.com/yairfalse/towercmp/pkg/resource"
)

func disabledConfig() config.OTELConfig {
	return config.OTELConfig{
		ServiceName: "test-towercmp",
		Traces:      config.TracesConfig{Enabled: false},
		Metrics:     config.OTLPMetricsConfig{Enabled: false},
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), disabledConfig(), "")
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.NotNil(t, p.Tracer())
	assert.NotNil(t, p.Meter())
	assert.NotNil(t, p.Registry())

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_WithEndpoint(t *testing.T) {
	cfg := config.OTELConfig{
		Endpoint:    "localhost:4317",
		Insecure:    true,
		ServiceName: "test-towercmp",
		Traces:      config.TracesConfig{Enabled: true, SampleRate: 1.0},
		Metrics:     config.OTLPMetricsConfig{Enabled: true},
	}

	// Setup does not dial the collector.
	p, err := NewProvider(context.Background(), cfg, "")
	require.NoError(t, err)
	require.NotNil(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// No collector is running, so shutdown may fail.
	_ = p.Shutdown(ctx)
}

func TestProvider_StartSpan(t *testing.T) {
	p, err := NewProvider(context.Background(), disabledConfig(), "")
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	ctx, span := p.StartSpan(context.Background(), "compare")
	require.NotNil(t, span)
	assert.NotNil(t, ctx)
	span.End()
}

func TestProvider_TextfileOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "towercmp.prom")

	p, err := NewProvider(context.Background(), disabledConfig(), path)
	require.NoError(t, err)

	ctx := context.Background()
	p.ObserveRequest(ctx, "Tower", resource.Inventories, 200, 150*time.Millisecond)
	p.ObserveRequest(ctx, "AWX", resource.Inventories, 0, time.Second)
	p.RecordResourceCount(ctx, "Tower", resource.Inventories, 3)
	p.RecordFindings(ctx, resource.Inventories, "host_count_mismatch", 2)
	p.RecordFindings(ctx, resource.Schedules, "left_only", 0)

	require.NoError(t, p.Shutdown(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "towercmp_api_requests_total")
	assert.Contains(t, out, "towercmp_api_request_duration_seconds")
	assert.Contains(t, out, "towercmp_resources_fetched_total")
	assert.Contains(t, out, "towercmp_findings_total")
	assert.Contains(t, out, `kind="host_count_mismatch"`)
	assert.NotContains(t, out, `kind="left_only"`)
}

func TestProvider_TextfileBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "towercmp.prom")

	p, err := NewProvider(context.Background(), disabledConfig(), path)
	require.NoError(t, err)

	err = p.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write metrics textfile")
}
