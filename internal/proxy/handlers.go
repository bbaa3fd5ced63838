package proxy

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/AriHenrique/dyrasql/internal/apierrors"
	"github.com/AriHenrique/dyrasql/internal/config"
	"github.com/AriHenrique/dyrasql/internal/fingerprint"
	"github.com/AriHenrique/dyrasql/internal/history"
	"github.com/AriHenrique/dyrasql/internal/metrics"
	"github.com/AriHenrique/dyrasql/internal/middleware"
	"github.com/AriHenrique/dyrasql/internal/rewrite"
)

// Health reports liveness and the two settings most relevant to
// debugging a misrouted request.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"service":             "dyrasql-gateway",
		"bypass_mode":         s.cfg.BypassMode,
		"streaming_threshold": s.cfg.StreamingThreshold,
	})
}

// LoginType answers Trino's auth-discovery probe with "no auth
// required" — the gateway does not implement its own authentication
// layer.
func (s *Server) LoginType(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"supportedTypes": []string{}})
}

// RouteQuery implements the standalone routing-decision endpoint: given
// a SQL query, returns which cluster it would run on without actually
// executing it.
func (s *Server) RouteQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, apierrors.InvalidRequest("malformed request body"))
		return
	}

	result := s.route(r.Context(), body.Query)
	endpoint := s.cfg.Endpoint(result.cluster)

	writeJSON(w, http.StatusOK, map[string]any{
		"fingerprint":          fingerprint.Fingerprint(body.Query),
		"cluster":              result.cluster,
		"score":                result.score,
		"factors":              result.factors,
		"cached":               result.cached,
		"cluster_url":          endpoint.InternalURL,
		"cluster_external_url": endpoint.ExternalURL,
	})
}

// SaveMetrics records post-execution outcome fields (execution_time,
// cost, success) against a fingerprint's existing history entry, per
// §4.5's record_metrics: it never touches the stored cluster/score or
// extends the entry's expiration.
func (s *Server) SaveMetrics(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Fingerprint string `json:"fingerprint"`
		Metrics     struct {
			ExecutionTime float64 `json:"execution_time"`
			Cost          float64 `json:"cost"`
			Success       bool    `json:"success"`
		} `json:"metrics"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, apierrors.InvalidRequest("malformed request body"))
		return
	}

	err := s.store.RecordMetrics(r.Context(), body.Fingerprint, history.Metrics{
		ExecutionTime: body.Metrics.ExecutionTime,
		Cost:          body.Metrics.Cost,
		Succeeded:     body.Metrics.Success,
	})
	if err != nil {
		s.log.Warnw("failed to save metrics", "fingerprint", body.Fingerprint, "error", err)
		metrics.HistoryStoreErrorsTotal.Inc()
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "metrics saved"})
}

// GetStatementNotAllowed answers GET /v1/statement, which some JDBC
// clients send before the real POST, with the 405 Trino itself returns.
func (s *Server) GetStatementNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeAPIError(w, &apierrors.Error{Kind: apierrors.TypeInvalidRequest, Message: "method not allowed: use POST /v1/statement", Status: http.StatusMethodNotAllowed})
}

// Info proxies GET /v1/info to the default cluster, required by JDBC
// drivers during connection setup. A proxy failure falls back to a
// static, plausible body rather than failing the client's handshake.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	endpoint := s.cfg.Endpoint(config.ClusterECS)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, endpoint.InternalURL+"/v1/info", nil)
	if err == nil {
		req.Header.Set("Accept-Encoding", "identity")
		resp, err := s.client.Do(req)
		if err == nil {
			defer resp.Body.Close()
			body, readErr := io.ReadAll(resp.Body)
			if readErr == nil {
				copyResponseHeaders(w, resp.Header)
				w.WriteHeader(resp.StatusCode)
				w.Write(body)
				return
			}
		}
	}

	s.log.Warnw("v1/info proxy failed, returning fallback body")
	writeJSON(w, http.StatusOK, map[string]any{
		"nodeId":      "dyrasql-core",
		"state":       "ACTIVE",
		"nodeVersion": map[string]string{"version": "478"},
		"environment": "production",
		"coordinator": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeAPIError(w http.ResponseWriter, err error) {
	status := apierrors.HTTPStatus(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func copyResponseHeaders(w http.ResponseWriter, header http.Header) {
	for key, values := range header {
		if hopByHopHeaders[lower(key)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// rewriteBody applies the configured URL rewriting mode to a response
// body before it's returned to the client.
func (s *Server) rewriteBody(body string, cluster config.ClusterName) string {
	if s.cfg.BypassMode {
		return rewrite.ForBypass(body, s.cfg.Endpoint(cluster))
	}
	return rewrite.ForProxy(body, s.cfg.Clusters, s.cfg.ProxyExternalURL)
}

// extractQueryID pulls the "id" field out of a statement-protocol
// response body, if present, for installing into the tracker.
func extractQueryID(body string) (string, bool) {
	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil || parsed.ID == "" {
		return "", false
	}
	return parsed.ID, true
}

func requestIDFrom(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
