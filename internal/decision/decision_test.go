package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/AriHenrique/dyrasql/internal/analyzer"
	"github.com/AriHenrique/dyrasql/internal/config"
	"github.com/AriHenrique/dyrasql/internal/probe"
)

func TestVolumeFactorEmptyResultIsNeutral(t *testing.T) {
	assert.Equal(t, 0.5, VolumeFactor(nil))
	assert.Equal(t, 0.5, VolumeFactor(&probe.Result{}))
}

func TestVolumeFactorClampsAtBounds(t *testing.T) {
	small := &probe.Result{Tables: map[string]probe.TableInfo{"a": {}}, TotalSizeBytes: 100}
	huge := &probe.Result{Tables: map[string]probe.TableInfo{"a": {}}, TotalSizeBytes: 1 << 50}

	assert.Equal(t, 0.0, VolumeFactor(small))
	// The 10% optimization discount caps fv at 0.9, even for an
	// arbitrarily large probe result — it never reaches 1.0.
	assert.InDelta(t, 0.9, VolumeFactor(huge), 0.001)
}

func TestVolumeFactorMatchesBoundaryScenario5GiB(t *testing.T) {
	result := &probe.Result{Tables: map[string]probe.TableInfo{"a": {}}, TotalSizeBytes: 5 * gib}

	// G = 5, F = floor(5*1024/50) = 102:
	// (0.3*ln(102)/ln(10000) + 0.7*ln(5)/ln(1000)) * 0.9 ≈ 0.282
	assert.InDelta(t, 0.28, VolumeFactor(result), 0.01)
}

func TestVolumeFactorMatchesBoundaryScenario2000GiB(t *testing.T) {
	result := &probe.Result{Tables: map[string]probe.TableInfo{"a": {}}, TotalSizeBytes: 2000 * gib}

	assert.InDelta(t, 0.9, VolumeFactor(result), 0.01)
}

func TestVolumeFactorIsMonotonic(t *testing.T) {
	mid := &probe.Result{Tables: map[string]probe.TableInfo{"a": {}}, TotalSizeBytes: 1 << 30}
	bigger := &probe.Result{Tables: map[string]probe.TableInfo{"a": {}}, TotalSizeBytes: 1 << 35}

	assert.Less(t, VolumeFactor(mid), VolumeFactor(bigger))
}

func TestComplexityFactorZeroForTrivialStatement(t *testing.T) {
	c := analyzer.AnalyzeComplexity("select 1")
	assert.Equal(t, 0.0, ComplexityFactor(c))
}

func TestComplexityFactorSaturates(t *testing.T) {
	c := analyzer.Complexity{Joins: 100, Aggregations: 100, Subqueries: 100, NonPartitionedFilters: 100}
	assert.Equal(t, 1.0, ComplexityFactor(c))
}

func TestComplexityFactorSinglePartitionedFilterMatchesBoundaryScenario(t *testing.T) {
	c := analyzer.Complexity{PartitionedFilters: 1}

	assert.InDelta(t, 0.01, ComplexityFactor(c), 0.0001)
}

func TestSelectClusterThresholds(t *testing.T) {
	thresholds := config.Thresholds{ECS: 0.3, EMRStandard: 0.7}

	assert.Equal(t, config.ClusterECS, SelectCluster(0.1, thresholds))
	assert.Equal(t, config.ClusterEMRStandard, SelectCluster(0.5, thresholds))
	assert.Equal(t, config.ClusterEMROptimized, SelectCluster(0.9, thresholds))
}

func TestSelectClusterUpperThresholdIsInclusive(t *testing.T) {
	thresholds := config.Thresholds{ECS: 0.3, EMRStandard: 0.7}

	assert.Equal(t, config.ClusterEMRStandard, SelectCluster(0.7, thresholds))
	assert.Equal(t, config.ClusterEMROptimized, SelectCluster(0.700001, thresholds))
}

func TestScoreWarnsButStillComputesOnBadWeights(t *testing.T) {
	log := zap.NewNop().Sugar()
	weights := config.Weights{Volume: 0.5, Complexity: 0.5, Historical: 0.5}

	score := Score(Factors{Volume: 1, Complexity: 1, Historical: 1}, weights, log)

	assert.Equal(t, 1.5, score)
}

func TestDecideProducesConsistentFactors(t *testing.T) {
	log := zap.NewNop().Sugar()
	cfg := &config.Config{
		Weights:    config.Weights{Volume: 0.5, Complexity: 0.3, Historical: 0.2},
		Thresholds: config.Thresholds{ECS: 0.3, EMRStandard: 0.7},
	}

	d := Decide(Factors{Volume: 0, Complexity: 0, Historical: 0}, cfg, log)

	assert.Equal(t, config.ClusterECS, d.Cluster)
	assert.Equal(t, 0.0, d.Score)
}
