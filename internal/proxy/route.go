package proxy

import (
	"context"
	"time"

	"github.com/AriHenrique/dyrasql/internal/analyzer"
	"github.com/AriHenrique/dyrasql/internal/config"
	"github.com/AriHenrique/dyrasql/internal/decision"
	"github.com/AriHenrique/dyrasql/internal/fingerprint"
	"github.com/AriHenrique/dyrasql/internal/history"
	"github.com/AriHenrique/dyrasql/internal/metrics"
)

// route computes the cluster a (non-keepalive) statement should run on:
// a cache hit on the statement's fingerprint short-circuits everything
// else; a metadata/catalog statement always goes to the smallest
// cluster without probing; otherwise an IO probe against the smallest
// cluster feeds the decision engine. Probe and history-store failures
// never surface here — they fall back to a neutral factor so routing
// always produces an answer.
func (s *Server) route(ctx context.Context, sql string) routingResult {
	fp := fingerprint.Fingerprint(sql)

	if cached, err := s.store.Lookup(ctx, fp); err == nil && cached != nil {
		metrics.DecisionsTotal.WithLabelValues(string(cached.Cluster), boolLabel(true)).Inc()
		return routingResult{cluster: cached.Cluster, score: cached.Score, cached: true}
	}

	if analyzer.IsMetadataOrCatalog(sql) {
		result := routingResult{cluster: config.ClusterECS, score: 0}
		s.persistDecision(ctx, fp, result)
		return result
	}

	prober := s.probers[config.ClusterECS]
	endpoint := s.cfg.Endpoint(config.ClusterECS)

	probeStart := time.Now()
	probeResult, err := prober.Run(ctx, endpoint.InternalURL, sql)
	probeSource := ""
	if probeResult != nil {
		probeSource = string(probeResult.Source)
	}
	metrics.ProbeDuration.WithLabelValues(string(config.ClusterECS), probeSource).Observe(time.Since(probeStart).Seconds())
	if err != nil {
		s.log.Warnw("probe failed, using neutral volume factor", "fingerprint", fp, "error", err)
		metrics.ProbeFailuresTotal.WithLabelValues("error").Inc()
	} else if probeResult != nil && probeResult.ViewError {
		s.log.Infow("probe reported view error, using neutral volume factor", "fingerprint", fp, "message", probeResult.ErrorMessage)
		metrics.ProbeFailuresTotal.WithLabelValues("view_error").Inc()
	}
	s.archiver.Save(sql, analyzer.Normalize(sql), probeResult, err)

	complexity := analyzer.AnalyzeComplexity(sql)
	factors := decision.Factors{
		Volume:     decision.VolumeFactor(probeResult),
		Complexity: decision.ComplexityFactor(complexity),
		Historical: history.HistoricalFactor(ctx, s.store, fp, s.log),
	}
	d := decision.Decide(factors, s.cfg, s.log)

	result := routingResult{cluster: d.Cluster, score: d.Score, factors: d.Factors}
	s.persistDecision(ctx, fp, result)
	return result
}

func (s *Server) persistDecision(ctx context.Context, fp string, result routingResult) {
	if err := s.store.Persist(ctx, history.Entry{
		Fingerprint: fp,
		Cluster:     result.cluster,
		Score:       result.score,
		Succeeded:   true,
		UpdatedAt:   time.Now(),
	}); err != nil {
		s.log.Warnw("failed to persist routing decision", "fingerprint", fp, "error", err)
		metrics.HistoryStoreErrorsTotal.Inc()
	}
	metrics.DecisionsTotal.WithLabelValues(string(result.cluster), boolLabel(result.cached)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
