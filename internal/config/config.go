// Package config resolves all DyraSQL tunables from the environment at
// startup. Configuration is read-only after New returns; nothing in this
// package watches for change.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ClusterName identifies one of the three configured backend clusters.
type ClusterName string

const (
	ClusterECS           ClusterName = "ecs"
	ClusterEMRStandard   ClusterName = "emr-standard"
	ClusterEMROptimized  ClusterName = "emr-optimized"
	DefaultClusterName                = ClusterECS
)

// AllClusters lists every cluster DyraSQL knows how to route to, in a
// stable order (used for proxy-mode URL rewriting, which must rewrite
// every cluster's internal URL, not just the chosen one).
var AllClusters = []ClusterName{ClusterECS, ClusterEMRStandard, ClusterEMROptimized}

// ClusterEndpoint is a single cluster's internal and external URLs.
type ClusterEndpoint struct {
	InternalURL string `validate:"required,url"`
	ExternalURL string `validate:"required,url"`
}

// Weights are the decision engine's factor weights. They need not sum to
// exactly 1 — the engine logs a warning and proceeds regardless, matching
// the Python original's tolerant behavior.
type Weights struct {
	Volume     float64 `yaml:"volume" validate:"min=0,max=1"`
	Complexity float64 `yaml:"complexity" validate:"min=0,max=1"`
	Historical float64 `yaml:"historical" validate:"min=0,max=1"`
}

// Thresholds are the score cut points used to pick a cluster.
type Thresholds struct {
	ECS         float64 `yaml:"ecs" validate:"min=0,max=1"`
	EMRStandard float64 `yaml:"emr_standard" validate:"min=0,max=1"`
}

// Config is the fully resolved, validated DyraSQL configuration.
type Config struct {
	Port int `validate:"min=1,max=65535"`

	Clusters map[ClusterName]ClusterEndpoint `validate:"required,dive"`

	BypassMode         bool
	ProxyExternalURL   string `validate:"required,url"`
	UIGatewayURL       string
	StreamingThreshold int64         `validate:"min=1"`
	DataTimeout        time.Duration `validate:"min=1s"`
	RoutingTimeout     time.Duration `validate:"min=1s"`
	KeepAliveTimeout   time.Duration `validate:"min=1s"`
	ProbeTimeout       time.Duration `validate:"min=1s"`

	Weights    Weights
	Thresholds Thresholds

	SaveExplains bool
	ExplainsDir  string `validate:"required"`

	DynamoDBTable  string `validate:"required"`
	AWSRegion      string `validate:"required"`

	TrackerMaxEntries int           `validate:"min=1"`
	TrackerTTL        time.Duration `validate:"min=1s"`

	MetricsAddr string
}

// weightsOverlay is the shape of an optional YAML file giving operators a
// way to retune the decision engine without touching deployment env vars.
// Env vars still take precedence when both are set.
type weightsOverlay struct {
	Weights    Weights    `yaml:"weights"`
	Thresholds Thresholds `yaml:"thresholds"`
}

// loadWeightsOverlay reads path if it's non-empty and exists; a missing
// file is not an error (the overlay is optional), but a malformed one is.
func loadWeightsOverlay(path string) (*weightsOverlay, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read weights overlay: %w", err)
	}
	var overlay weightsOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("config: parse weights overlay: %w", err)
	}
	return &overlay, nil
}

// New resolves configuration from the environment and validates it. A
// validation failure is returned, not panicked — callers (cmd/main) decide
// whether a misconfigured process should refuse to start.
func New() (*Config, error) {
	overlay, err := loadWeightsOverlay(getEnv("WEIGHTS_CONFIG_FILE", ""))
	if err != nil {
		return nil, err
	}
	weightDefaults := Weights{Volume: 0.5, Complexity: 0.3, Historical: 0.2}
	thresholdDefaults := Thresholds{ECS: 0.3, EMRStandard: 0.7}
	if overlay != nil {
		weightDefaults = overlay.Weights
		thresholdDefaults = overlay.Thresholds
	}

	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Clusters: map[ClusterName]ClusterEndpoint{
			ClusterECS: {
				InternalURL: getEnv("TRINO_ECS_URL", "http://trino-ecs:8080"),
				ExternalURL: getEnv("TRINO_ECS_EXTERNAL_URL", "http://localhost:8081"),
			},
			ClusterEMRStandard: {
				InternalURL: getEnv("TRINO_EMR_STANDARD_URL", "http://trino-emr-standard:8080"),
				ExternalURL: getEnv("TRINO_EMR_STANDARD_EXTERNAL_URL", "http://localhost:8082"),
			},
			ClusterEMROptimized: {
				InternalURL: getEnv("TRINO_EMR_OPTIMIZED_URL", "http://trino-emr-optimized:8080"),
				ExternalURL: getEnv("TRINO_EMR_OPTIMIZED_EXTERNAL_URL", "http://localhost:8083"),
			},
		},
		BypassMode:         getEnvBool("BYPASS_MODE", true),
		ProxyExternalURL:   getEnv("PROXY_EXTERNAL_URL", "http://localhost:8080"),
		UIGatewayURL:       getEnv("TRINO_GATEWAY_URL", ""),
		StreamingThreshold: int64(getEnvInt("STREAMING_THRESHOLD", 65536)),
		DataTimeout:        time.Duration(getEnvInt("DATA_TIMEOUT", 300)) * time.Second,
		RoutingTimeout:     time.Duration(getEnvInt("ROUTING_TIMEOUT", 5)) * time.Second,
		KeepAliveTimeout:   5 * time.Second,
		ProbeTimeout:       60 * time.Second,
		Weights: Weights{
			Volume:     getEnvFloat("DYRASQL_WEIGHT_VOLUME", weightDefaults.Volume),
			Complexity: getEnvFloat("DYRASQL_WEIGHT_COMPLEXITY", weightDefaults.Complexity),
			Historical: getEnvFloat("DYRASQL_WEIGHT_HISTORICAL", weightDefaults.Historical),
		},
		Thresholds: Thresholds{
			ECS:         getEnvFloat("DYRASQL_ECS_THRESHOLD", thresholdDefaults.ECS),
			EMRStandard: getEnvFloat("DYRASQL_EMR_STANDARD_THRESHOLD", thresholdDefaults.EMRStandard),
		},
		SaveExplains:      getEnvBool("SAVE_EXPLAINS", true),
		ExplainsDir:       getEnv("EXPLAINS_DIR", "/app/explains"),
		DynamoDBTable:     getEnv("DYNAMODB_TABLE", "dyrasql-history"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		TrackerMaxEntries: getEnvInt("TRACKER_MAX_ENTRIES", 100000),
		TrackerTTL:        time.Duration(getEnvInt("TRACKER_TTL_SECONDS", 3600)) * time.Second,
		MetricsAddr:       getEnv("METRICS_ADDR", ":9090"),
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Endpoint returns the configured endpoint for a cluster, falling back to
// the default cluster if the name is unknown (mirrors the Python
// original's CLUSTER_URLS.get(name, CLUSTER_URLS[FALLBACK_CLUSTER])).
func (c *Config) Endpoint(name ClusterName) ClusterEndpoint {
	if ep, ok := c.Clusters[name]; ok {
		return ep
	}
	return c.Clusters[DefaultClusterName]
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true")
	}
	return fallback
}
