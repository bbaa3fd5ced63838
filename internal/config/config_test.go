package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWeightsOverlayMissingFileIsNotAnError(t *testing.T) {
	overlay, err := loadWeightsOverlay(filepath.Join(t.TempDir(), "missing.yaml"))

	require.NoError(t, err)
	assert.Nil(t, overlay)
}

func TestLoadWeightsOverlayEmptyPathIsNoOp(t *testing.T) {
	overlay, err := loadWeightsOverlay("")

	require.NoError(t, err)
	assert.Nil(t, overlay)
}

func TestLoadWeightsOverlayParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	content := `
weights:
  volume: 0.6
  complexity: 0.25
  historical: 0.15
thresholds:
  ecs: 0.2
  emr_standard: 0.8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	overlay, err := loadWeightsOverlay(path)

	require.NoError(t, err)
	require.NotNil(t, overlay)
	assert.Equal(t, 0.6, overlay.Weights.Volume)
	assert.Equal(t, 0.25, overlay.Weights.Complexity)
	assert.Equal(t, 0.2, overlay.Thresholds.ECS)
}

func TestLoadWeightsOverlayRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights: [this is not a mapping"), 0o644))

	_, err := loadWeightsOverlay(path)

	assert.Error(t, err)
}

func TestEndpointFallsBackToDefaultCluster(t *testing.T) {
	cfg := &Config{
		Clusters: map[ClusterName]ClusterEndpoint{
			ClusterECS: {InternalURL: "http://ecs:8080", ExternalURL: "http://localhost:8081"},
		},
	}

	ep := cfg.Endpoint(ClusterName("unknown"))

	assert.Equal(t, "http://ecs:8080", ep.InternalURL)
}
