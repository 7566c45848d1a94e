package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabledInstallsNoop(t *testing.T) {
	t.Setenv("ATG_OTEL_ENABLED", "")
	require.NoError(t, Init(context.Background(), "atg-test", "dev"))
	assert.False(t, Enabled())

	_, span := Tracer("").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	c, err := Meter("").Int64Counter("atg.test.counter")
	require.NoError(t, err)
	c.Add(context.Background(), 1)
	Shutdown(context.Background())
}

func TestInitEnabledRecordsSpans(t *testing.T) {
	t.Setenv("ATG_OTEL_ENABLED", "true")
	t.Setenv("ATG_OTEL_STDOUT", "false")
	require.NoError(t, Init(context.Background(), "atg-test", "dev"))
	t.Cleanup(func() { Shutdown(context.Background()) })

	_, span := Tracer("test").Start(context.Background(), "real")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}
