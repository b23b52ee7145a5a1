package telemetry

import (
	"context"
	"testing"

	"child-development-records/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledIsNoop(t *testing.T) {
	tel, err := Setup(context.Background(), config.TelemetryConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestCleanEndpoint(t *testing.T) {
	assert.Equal(t, "localhost:4317", cleanEndpoint("grpc://localhost:4317"))
	assert.Equal(t, "collector:4317", cleanEndpoint(" http://collector:4317/ "))
	assert.Equal(t, "otel.example.com:443", cleanEndpoint("https://otel.example.com:443"))
}
