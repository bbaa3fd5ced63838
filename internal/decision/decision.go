// Package decision scores a statement against three independent
// factors — data volume, syntactic complexity, and routing history —
// and maps the weighted result to one of the configured clusters.
package decision

import (
	"math"

	"go.uber.org/zap"

	"github.com/AriHenrique/dyrasql/internal/analyzer"
	"github.com/AriHenrique/dyrasql/internal/config"
	"github.com/AriHenrique/dyrasql/internal/probe"
)

const (
	gib = 1 << 30

	// volumeFileSizeMiB is the assumed average file size used to turn a
	// byte total into an estimated file count.
	volumeFileSizeMiB = 50
	// volumeFileCountLog and volumeGiBLog are the log bases the file-count
	// and gibibyte normalizations saturate against.
	volumeFileCountLog = 10000
	volumeGiBLog       = 1000
	// volumeOptimizationTerm discounts the blended factor by 10%.
	volumeOptimizationTerm = 0.1
	// volumeGFloor keeps ln(G) defined for vanishingly small probes.
	volumeGFloor = 1e-3

	// complexity weights and the saturation limit the weighted sum is
	// divided against before being clipped to [0, 1].
	complexityWeightJoins             = 0.2
	complexityWeightAggregations      = 0.15
	complexityWeightSubqueries        = 0.25
	complexityWeightPartitionedFilter = 0.02
	complexityWeightNonPartitioned    = 0.1
	complexityLimit                   = 2.0
)

// Factors is the three independently computed inputs to a routing score.
type Factors struct {
	Volume     float64
	Complexity float64
	Historical float64
}

// Decision is the outcome of scoring a single statement.
type Decision struct {
	Cluster config.ClusterName
	Score   float64
	Factors Factors
}

// VolumeFactor maps a probe result's total estimated size to [0, 1]. An
// empty or nil result (probe failed, or found nothing to estimate) yields
// a neutral 0.5 rather than being treated as "no data". Bytes are first
// converted to an estimated file count (assuming a fixed 50 MiB average
// file size) and to gibibytes; both are log-normalized and blended
// 30/70, then discounted by a 10% optimization term.
func VolumeFactor(result *probe.Result) float64 {
	if result.Empty() {
		return 0.5
	}

	g := result.TotalSizeBytes / gib
	if g < volumeGFloor {
		g = volumeGFloor
	}
	f := math.Floor(g * 1024 / volumeFileSizeMiB)
	if f < 1 {
		f = 1
	}

	nf := math.Min(1, math.Log(f)/math.Log(volumeFileCountLog))
	ng := math.Min(1, math.Log(g)/math.Log(volumeGiBLog))

	fv := (0.3*nf + 0.7*ng) * (1 - volumeOptimizationTerm)
	return clip01(fv)
}

// ComplexityFactor maps a statement's complexity vector to [0, 1]: each
// dimension contributes a fixed weight, the weighted sum is divided by a
// saturation limit, and the result is clipped.
func ComplexityFactor(c analyzer.Complexity) float64 {
	weighted := complexityWeightJoins*float64(c.Joins) +
		complexityWeightAggregations*float64(c.Aggregations) +
		complexityWeightSubqueries*float64(c.Subqueries) +
		complexityWeightPartitionedFilter*float64(c.PartitionedFilters) +
		complexityWeightNonPartitioned*float64(c.NonPartitionedFilters)
	return clip01(weighted / complexityLimit)
}

func clip01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Score combines fv, fc, fh using cfg's weights. If the weights don't
// sum to (approximately) 1, the result is still computed and returned —
// only a warning is logged — matching the tolerant behavior of the
// routing heuristic this replaces.
func Score(factors Factors, weights config.Weights, log *zap.SugaredLogger) float64 {
	total := weights.Volume + weights.Complexity + weights.Historical
	if math.Abs(total-1) > 0.01 {
		log.Warnw("decision weights do not sum to 1", "volume", weights.Volume,
			"complexity", weights.Complexity, "historical", weights.Historical, "sum", total)
	}
	return factors.Volume*weights.Volume + factors.Complexity*weights.Complexity + factors.Historical*weights.Historical
}

// SelectCluster maps a score to a cluster using cfg's two threshold cut
// points: below the ECS threshold is the smallest cluster, from the ECS
// threshold up to and including the EMR-standard threshold is the
// mid-sized cluster, and only strictly above it is the largest.
func SelectCluster(score float64, thresholds config.Thresholds) config.ClusterName {
	switch {
	case score < thresholds.ECS:
		return config.ClusterECS
	case score <= thresholds.EMRStandard:
		return config.ClusterEMRStandard
	default:
		return config.ClusterEMROptimized
	}
}

// Decide runs the full scoring pipeline for one statement's already
// computed factors and returns the chosen cluster alongside the factors
// and score that produced it, for logging and history persistence.
func Decide(factors Factors, cfg *config.Config, log *zap.SugaredLogger) Decision {
	score := Score(factors, cfg.Weights, log)
	return Decision{
		Cluster: SelectCluster(score, cfg.Thresholds),
		Score:   score,
		Factors: factors,
	}
}
