package proxy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AriHenrique/dyrasql/internal/apierrors"
	"github.com/AriHenrique/dyrasql/internal/config"
)

var queryIDInPath = regexp.MustCompile(`/(\d{8}_\d{6}_\d{5}_[^/]+)/`)

// clusterForPath resolves which cluster a follow-up request belongs to
// by pulling the query ID out of the URL path and consulting the
// tracker; an unrecognized query ID falls back to the default cluster
// rather than failing the request outright.
func (s *Server) clusterForPath(path string) config.ClusterName {
	match := queryIDInPath.FindStringSubmatch(path)
	if match == nil {
		return config.DefaultClusterName
	}
	queryID := match[1]
	if cluster, ok := s.tracker.Get(queryID); ok {
		return cluster
	}
	s.log.Debugw("query id not tracked, falling back to default cluster", "query_id", queryID)
	return config.DefaultClusterName
}

// strippedRequestHeaders are never forwarded upstream: Host and
// Content-Length are recomputed by the transport for the new target,
// and Connection is a hop-by-hop header.
var strippedRequestHeaders = map[string]bool{
	"host":           true,
	"content-length": true,
	"connection":     true,
}

// uiAssetSuffixes are the static-file extensions served by the UI
// gateway rather than a Trino cluster.
var uiAssetSuffixes = []string{".html", ".css", ".js", ".ico"}

// isUIAssetPath reports whether path belongs to the separate UI
// gateway (the Trino web UI and its static assets) rather than to a
// cluster's statement protocol.
func isUIAssetPath(path string) bool {
	if path == "" {
		return true
	}
	for _, prefix := range []string{"ui/", "assets/", "vendor/"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, suffix := range uiAssetSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// proxyToUIGateway forwards a UI/asset GET to the configured UI
// gateway and writes its response verbatim. It reports whether the
// request succeeded; on failure the caller falls back to proxying the
// resolved cluster instead.
func (s *Server) proxyToUIGateway(w http.ResponseWriter, r *http.Request, path string) bool {
	targetURL := strings.TrimSuffix(s.cfg.UIGatewayURL, "/") + "/" + path
	if r.URL.RawQuery != "" {
		targetURL += "?" + r.URL.RawQuery
	}

	ctx, cancel := context.WithTimeout(r.Context(), uiGatewayTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		s.log.Warnw("ui gateway request build failed, falling back to cluster", "error", err)
		return false
	}
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warnw("ui gateway proxy failed, falling back to cluster", "url", targetURL, "error", err)
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.log.Warnw("ui gateway response read failed, falling back to cluster", "url", targetURL, "error", err)
		return false
	}

	copyResponseHeaders(w, resp.Header)
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
	return true
}

// uiGatewayTimeout bounds the UI gateway redirect attempt so a down UI
// gateway falls back to the cluster quickly instead of stalling the request.
const uiGatewayTimeout = 5 * time.Second

// CatchAll proxies every Trino endpoint the statement handler doesn't
// own (nextUri polling, cancellation, UI assets, etc). GET requests
// stream directly to the client unless the body is small JSON, in
// which case it's buffered so URL rewriting can run on it first.
func (s *Server) CatchAll(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	if r.Method == http.MethodGet && s.cfg.UIGatewayURL != "" && isUIAssetPath(path) {
		if s.proxyToUIGateway(w, r, path) {
			return
		}
	}

	cluster := s.clusterForPath(r.URL.Path)
	endpoint := s.cfg.Endpoint(cluster)
	targetURL := endpoint.InternalURL + "/" + path
	if r.URL.RawQuery != "" {
		targetURL += "?" + r.URL.RawQuery
	}

	var reqBody io.Reader
	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeAPIError(w, apierrors.Internal("failed to read request body", err))
			return
		}
		reqBody = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.DataTimeout)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(ctx, r.Method, targetURL, reqBody)
	if err != nil {
		writeAPIError(w, apierrors.Internal("failed to build upstream request", err))
		return
	}
	for key, values := range r.Header {
		if strippedRequestHeaders[lower(key)] {
			continue
		}
		for _, v := range values {
			upstreamReq.Header.Add(key, v)
		}
	}
	upstreamReq.Header.Set("Accept-Encoding", "identity")

	resp, err := s.client.Do(upstreamReq)
	if err != nil {
		if ctx.Err() != nil {
			writeAPIError(w, apierrors.UpstreamTimeout("request timeout", err))
			return
		}
		writeAPIError(w, apierrors.Internal("proxy request failed", err))
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	// Non-GET follow-ups (cancellations, acknowledgements) are always
	// small control responses, so they're always buffered and rewritten.
	// GET follow-ups (nextUri polling) only buffer when the body is JSON
	// small enough to hold in memory; a large result set streams instead.
	if r.Method != http.MethodGet || (strings.Contains(contentType, "application/json") && s.isSmallEnoughToBuffer(resp)) {
		s.bufferAndRewrite(w, resp, cluster)
		return
	}

	copyResponseHeaders(w, resp.Header)
	w.WriteHeader(resp.StatusCode)
	streamChunks(w, resp.Body)
}

func (s *Server) bufferAndRewrite(w http.ResponseWriter, resp *http.Response, cluster config.ClusterName) {
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		writeAPIError(w, apierrors.Internal("failed to read upstream response", err))
		return
	}
	rewritten := s.rewriteBody(string(content), cluster)
	copyResponseHeaders(w, resp.Header)
	w.WriteHeader(resp.StatusCode)
	w.Write([]byte(rewritten))
}

// streamChunkSize matches Trino's own streaming chunk size, keeping
// memory use flat regardless of response size.
const streamChunkSize = 8192

func streamChunks(w http.ResponseWriter, body io.Reader) {
	buf := make([]byte, streamChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) isSmallEnoughToBuffer(resp *http.Response) bool {
	cl := resp.Header.Get("Content-Length")
	if cl == "" {
		return true
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil {
		return true
	}
	return n < s.cfg.StreamingThreshold
}
