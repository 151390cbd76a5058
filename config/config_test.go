package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propfinder/server/internal/estimator"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5250, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "ensemble", cfg.Model.Kind)
	assert.Equal(t, 0.05, cfg.Projection.AppreciationRate)
	assert.Equal(t, 5, cfg.Projection.Years)
	assert.Equal(t, "info", cfg.LogLevel)

	opts := cfg.EstimatorOptions()
	assert.Equal(t, estimator.DefaultOptions(), opts)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,https://example.com")
	t.Setenv("MODEL_KIND", "knn")
	t.Setenv("MODEL_NEIGHBOURS", "7")
	t.Setenv("APPRECIATION_RATE", "0.08")
	t.Setenv("PROJECTION_YEARS", "10")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000", "https://example.com"}, cfg.Server.AllowedOrigins)

	opts := cfg.EstimatorOptions()
	assert.Equal(t, estimator.KindKNN, opts.Kind)
	assert.Equal(t, 7, opts.Neighbours)

	projection := cfg.PriceProjection()
	assert.Equal(t, 0.08, projection.Rate)
	assert.Equal(t, 10, projection.Years)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown model kind", "MODEL_KIND", "svm"},
		{"port out of range", "PORT", "70000"},
		{"test fraction", "MODEL_TEST_FRACTION", "1.5"},
		{"log level", "LOG_LEVEL", "chatty"},
		{"not a number", "PROJECTION_YEARS", "five"},
		{"negative years", "PROJECTION_YEARS", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
