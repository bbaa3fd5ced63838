// Package probe drives the IO Probe: it submits an EXPLAIN (TYPE IO)
// statement (and, when that comes back empty, a fallback EXPLAIN (TYPE
// DISTRIBUTED)) against a backend cluster to estimate how much data a
// statement will touch before deciding where to run it for real.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AriHenrique/dyrasql/internal/analyzer"
	"github.com/AriHenrique/dyrasql/internal/apierrors"
	"github.com/AriHenrique/dyrasql/internal/tracing"
)

// Prober issues probe statements against a single backend endpoint,
// guarded by a circuit breaker so a wedged cluster doesn't pile up slow
// probe requests behind it.
type Prober struct {
	httpClient     *http.Client
	breaker        *gobreaker.CircuitBreaker
	perCallTimeout time.Duration
	user           string
	log            *zap.SugaredLogger
	tracer         oteltrace.Tracer
	cluster        string
}

// NewProber builds a Prober for one cluster endpoint. name is used to
// label the circuit breaker's metrics/log lines and the spans Run opens.
func NewProber(name string, perCallTimeout time.Duration, log *zap.SugaredLogger, tracer oteltrace.Tracer) *Prober {
	settings := gobreaker.Settings{
		Name:    "probe-" + name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			log.Warnw("probe circuit breaker state change", "breaker", breakerName, "from", from, "to", to)
		},
	}
	return &Prober{
		httpClient:     &http.Client{},
		breaker:        gobreaker.NewCircuitBreaker(settings),
		perCallTimeout: perCallTimeout,
		user:           "dyrasql-probe",
		log:            log,
		tracer:         tracer,
		cluster:        name,
	}
}

// Run executes the probe procedure against baseURL for the given
// (already catalog-normalized) SQL: try EXPLAIN (TYPE IO) first; if the
// backend rejects it with a view-resolution error, stop there and report
// it rather than guessing with a fallback; otherwise, if IO came back
// empty, retry with EXPLAIN (TYPE DISTRIBUTED) and parse its text plan
// instead. A probe failure comes back as a nil Result with a ProbeFailure
// error, which callers log rather than surface; the decision engine
// treats a nil Result as "unknown, use a neutral factor".
func (p *Prober) Run(ctx context.Context, baseURL, originalSQL string) (*Result, error) {
	ctx, span := tracing.StartProbeSpan(ctx, p.tracer, p.cluster)
	defer span.End()

	normalized := analyzer.Normalize(originalSQL)

	ioResult, viewErr, err := p.runExplain(ctx, baseURL, "IO", normalized)
	if err != nil {
		return nil, apierrors.ProbeFailure("io probe failed", err)
	}
	if viewErr != "" {
		return &Result{Source: SourceIO, ViewError: true, ErrorMessage: viewErr}, nil
	}
	if ioResult != nil && !ioResult.Empty() {
		return ioResult, nil
	}

	distResult, viewErr2, err := p.runDistributedExplain(ctx, baseURL, normalized)
	if err != nil {
		if ioResult != nil {
			return ioResult, nil
		}
		return nil, apierrors.ProbeFailure("distributed plan probe failed", err)
	}
	if viewErr2 != "" {
		return &Result{Source: SourceDistributedPlan, ViewError: true, ErrorMessage: viewErr2}, nil
	}
	return distResult, nil
}

func (p *Prober) runExplain(ctx context.Context, baseURL, explainType, sql string) (*Result, string, error) {
	statement := fmt.Sprintf("EXPLAIN (TYPE %s) %s", explainType, sql)

	raw, err := p.breaker.Execute(func() (interface{}, error) {
		res, err := execute(ctx, p.httpClient, baseURL, p.user, statement, p.perCallTimeout)
		if err != nil {
			return nil, err
		}
		if res.hasErr {
			return res, nil
		}
		return res, nil
	})
	if err != nil {
		return nil, "", err
	}

	res := raw.(*execResult)
	if res.hasErr {
		if isViewError(res.errMsg) {
			return nil, res.errMsg, nil
		}
		return nil, "", fmt.Errorf("backend rejected %s explain: %s", explainType, res.errMsg)
	}

	payload, ok := firstCellString(res.data)
	if !ok {
		return &Result{Tables: map[string]TableInfo{}, Source: SourceIO}, "", nil
	}

	parsed, err := parseIOExplain(payload)
	if err != nil {
		return nil, "", fmt.Errorf("parse io explain: %w", err)
	}
	return parsed, "", nil
}

func (p *Prober) runDistributedExplain(ctx context.Context, baseURL, sql string) (*Result, string, error) {
	statement := "EXPLAIN (TYPE DISTRIBUTED) " + sql

	raw, err := p.breaker.Execute(func() (interface{}, error) {
		return execute(ctx, p.httpClient, baseURL, p.user, statement, p.perCallTimeout)
	})
	if err != nil {
		return nil, "", err
	}

	res := raw.(*execResult)
	if res.hasErr {
		if isViewError(res.errMsg) {
			return nil, res.errMsg, nil
		}
		return nil, "", fmt.Errorf("backend rejected distributed explain: %s", res.errMsg)
	}

	text, ok := firstCellString(res.data)
	if !ok {
		return &Result{Tables: map[string]TableInfo{}, Source: SourceDistributedPlan}, "", nil
	}
	return parseDistributedPlan(text), "", nil
}
