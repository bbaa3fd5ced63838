// Package rewrite substitutes a backend cluster's internal base URL for
// its externally reachable one (or for the gateway's own address) inside
// a statement-protocol response body, so a client following nextUri or
// an info URI lands somewhere it can actually reach.
package rewrite

import (
	"regexp"

	"github.com/AriHenrique/dyrasql/internal/config"
)

func urlPattern(baseURL string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(baseURL) + `(/v1/statement/[^"]+|/ui/[^"]+)`)
}

// ForBypass rewrites cluster's internal URL to its external URL in every
// /v1/statement/... and /ui/... link in body, so subsequent requests go
// straight to the cluster instead of back through the gateway. Other
// occurrences of the internal URL are left as they are.
func ForBypass(body string, cluster config.ClusterEndpoint) string {
	return urlPattern(cluster.InternalURL).ReplaceAllString(body, cluster.ExternalURL+"$1")
}

// ForProxy rewrites every configured cluster's internal URL to the
// gateway's own external URL in the /v1/statement/... and /ui/... links
// of body, keeping all subsequent traffic
// flowing through the gateway rather than direct to a backend.
func ForProxy(body string, clusters map[config.ClusterName]config.ClusterEndpoint, proxyExternalURL string) string {
	for _, endpoint := range clusters {
		body = urlPattern(endpoint.InternalURL).ReplaceAllString(body, proxyExternalURL+"$1")
	}
	return body
}
