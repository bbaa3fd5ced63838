// Package proxy implements the statement-protocol gateway: it accepts
// Trino-style /v1/statement submissions, runs the routing decision
// (fingerprint cache, metadata/catalog shortcut, IO probe, decision
// engine), forwards the statement to the chosen cluster, and proxies
// every subsequent nextUri follow-up to whichever cluster is already
// running that query.
package proxy

import (
	"net/http"
	"strings"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AriHenrique/dyrasql/internal/archive"
	"github.com/AriHenrique/dyrasql/internal/config"
	"github.com/AriHenrique/dyrasql/internal/decision"
	"github.com/AriHenrique/dyrasql/internal/history"
	"github.com/AriHenrique/dyrasql/internal/probe"
	"github.com/AriHenrique/dyrasql/internal/tracker"
)

// hopByHopHeaders are stripped from every proxied response — Go's
// transport already manages these at the connection level, and copying
// them through corrupts chunked/keep-alive framing on the client side.
var hopByHopHeaders = map[string]bool{
	"content-encoding":  true,
	"transfer-encoding": true,
	"connection":        true,
	"content-length":    true,
}

// forwardedRequestHeaders are the extra Trino client headers passed
// through on a statement submission, beyond the fixed set the proxy
// always sets itself.
var forwardedRequestHeaders = []string{
	"X-Trino-Catalog", "X-Trino-Schema", "X-Trino-Source", "X-Trino-Client-Info",
}

var keepAliveStatements = map[string]bool{
	"SELECT 1":              true,
	"SELECT 1 AS KEEPALIVE": true,
	"SELECT 1 AS 1":         true,
}

// Server holds every dependency the statement proxy needs to route and
// forward requests.
type Server struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	client   *http.Client
	store    history.Store
	tracker  *tracker.Tracker
	archiver *archive.Archiver
	probers  map[config.ClusterName]*probe.Prober
	tracer   oteltrace.Tracer
}

// NewServer wires together a Server ready to mount onto a router.
func NewServer(cfg *config.Config, log *zap.SugaredLogger, store history.Store, trk *tracker.Tracker, archiver *archive.Archiver, tracer oteltrace.Tracer) *Server {
	probers := make(map[config.ClusterName]*probe.Prober, len(config.AllClusters))
	for _, name := range config.AllClusters {
		probers[name] = probe.NewProber(string(name), cfg.ProbeTimeout, log, tracer)
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		client:   &http.Client{},
		store:    store,
		tracker:  trk,
		archiver: archiver,
		probers:  probers,
		tracer:   tracer,
	}
}

// isKeepAlive mirrors the keep-alive detection JDBC/ODBC drivers use to
// validate a connection without doing real work: routed straight to the
// smallest cluster, no fingerprinting or probing. normalizedUpper must
// already be upper-cased, trimmed, and stripped of a trailing semicolon.
func isKeepAlive(normalizedUpper string) bool {
	if keepAliveStatements[normalizedUpper] {
		return true
	}
	return strings.HasPrefix(normalizedUpper, "SELECT 'KEEP ALIVE'") ||
		strings.HasPrefix(normalizedUpper, "SELECT 'KEEPALIVE'")
}

// normalizeForRouting upper-cases and trims sql the same way the
// keep-alive and metadata-statement checks expect.
func normalizeForRouting(sql string) string {
	s := strings.TrimSpace(sql)
	s = strings.ToUpper(s)
	s = strings.TrimSuffix(s, ";")
	return strings.TrimSpace(s)
}

// routingResult is the outcome of deciding where a (non-keepalive)
// statement should run, independent of whether that outcome came from
// cache, a metadata shortcut, or a full probe+score pass.
type routingResult struct {
	cluster config.ClusterName
	score   float64
	factors decision.Factors
	cached  bool
}
