package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AriHenrique/dyrasql/internal/config"
)

func TestForBypassRewritesStatementAndUILinks(t *testing.T) {
	cluster := config.ClusterEndpoint{
		InternalURL: "http://trino-ecs:8080",
		ExternalURL: "http://localhost:8081",
	}
	body := `{"nextUri":"http://trino-ecs:8080/v1/statement/20260101_abc","infoUri":"http://trino-ecs:8080/ui/query.html"}`

	out := ForBypass(body, cluster)

	assert.Contains(t, out, `http://localhost:8081/v1/statement/20260101_abc`)
	assert.Contains(t, out, `http://localhost:8081/ui/query.html`)
	assert.NotContains(t, out, "trino-ecs")
}

func TestForProxyRewritesEveryConfiguredCluster(t *testing.T) {
	clusters := map[config.ClusterName]config.ClusterEndpoint{
		config.ClusterECS:          {InternalURL: "http://trino-ecs:8080", ExternalURL: "http://localhost:8081"},
		config.ClusterEMRStandard:  {InternalURL: "http://trino-emr-standard:8080", ExternalURL: "http://localhost:8082"},
	}
	body := `{"nextUri":"http://trino-emr-standard:8080/v1/statement/xyz"}`

	out := ForProxy(body, clusters, "http://localhost:8080")

	assert.Contains(t, out, `http://localhost:8080/v1/statement/xyz`)
}

func TestForBypassLeavesUnrelatedURLsAlone(t *testing.T) {
	cluster := config.ClusterEndpoint{
		InternalURL: "http://trino-ecs:8080",
		ExternalURL: "http://localhost:8081",
	}
	body := `{"somethingElse":"http://other-host:9000/v1/statement/xyz"}`

	out := ForBypass(body, cluster)

	assert.Equal(t, body, out)
}
