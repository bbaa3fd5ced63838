package proxy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/AriHenrique/dyrasql/internal/apierrors"
	"github.com/AriHenrique/dyrasql/internal/config"
	"github.com/AriHenrique/dyrasql/internal/metrics"
	"github.com/AriHenrique/dyrasql/internal/tracing"
)

// Statement handles POST /v1/statement: it decides (or looks up) which
// cluster should run sql, forwards the statement there, installs the
// query-id-to-cluster mapping before returning, and rewrites the
// response body's embedded URLs according to the configured mode.
func (s *Server) Statement(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeAPIError(w, apierrors.InvalidRequest("failed to read request body"))
		return
	}
	sql := string(body)
	if len(bytes.TrimSpace(body)) == 0 {
		writeAPIError(w, apierrors.InvalidRequest("SQL query is required"))
		return
	}

	user := r.Header.Get("X-Trino-User")
	if user == "" {
		user = "admin"
	}

	normalizedUpper := normalizeForRouting(sql)

	var cluster config.ClusterName
	var timeout time.Duration
	if isKeepAlive(normalizedUpper) {
		cluster = config.ClusterECS
		timeout = 5 * time.Second
		s.log.Infow("statement routed", "reason", "keepalive", "cluster", cluster)
	} else {
		result := s.route(r.Context(), sql)
		cluster = result.cluster
		timeout = s.cfg.DataTimeout
		s.log.Infow("statement routed", "cluster", cluster, "score", result.score, "cached", result.cached)
	}

	endpoint := s.cfg.Endpoint(cluster)

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	ctx, span := tracing.StartForwardSpan(ctx, s.tracer, string(cluster))
	defer span.End()

	start := time.Now()
	upstreamReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.InternalURL+"/v1/statement", bytes.NewReader(body))
	if err != nil {
		writeAPIError(w, apierrors.Internal("failed to build upstream request", err))
		return
	}
	upstreamReq.Header.Set("Content-Type", "text/plain")
	upstreamReq.Header.Set("X-Trino-User", user)
	upstreamReq.Header.Set("Accept-Encoding", "identity")
	for _, header := range forwardedRequestHeaders {
		if v := r.Header.Get(header); v != "" {
			upstreamReq.Header.Set(header, v)
		}
	}

	resp, err := s.client.Do(upstreamReq)
	metrics.ProxyForwardDuration.WithLabelValues(string(cluster)).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			writeAPIError(w, apierrors.UpstreamTimeout("query execution timeout", err))
			return
		}
		writeAPIError(w, apierrors.Internal("query execution failed", err))
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		writeAPIError(w, apierrors.Internal("failed to read upstream response", err))
		return
	}
	content := string(respBody)

	if queryID, ok := extractQueryID(content); ok {
		s.tracker.Put(queryID, cluster)
		metrics.TrackerSize.Set(float64(s.tracker.Len()))
	}

	content = s.rewriteBody(content, cluster)

	copyResponseHeaders(w, resp.Header)
	w.WriteHeader(resp.StatusCode)
	w.Write([]byte(content))
}
