// Package analyzer implements the syntactic complexity analyzer and
// catalog normalizer, ported pattern-for-pattern from the original
// Python query analyzer so the routing heuristics stay literally
// reproduced.
package analyzer

import (
	"regexp"
	"strings"
)

// Complexity is the per-statement complexity vector.
type Complexity struct {
	Joins                  int
	Aggregations           int
	Subqueries             int
	PartitionedFilters     int
	NonPartitionedFilters  int
}

var (
	joinRe             = regexp.MustCompile(`\bjoin\b`)
	aggregationRe      = regexp.MustCompile(`\b(count|sum|avg|min|max|group_concat)\s*\(`)
	subqueryRe         = regexp.MustCompile(`\(select\s+`)
	partitionedRe      = regexp.MustCompile(`where.*(date|data|timestamp|year|month|day)`)
	whereRe            = regexp.MustCompile(`\bwhere\b`)
)

// AnalyzeComplexity returns the complexity vector for sql, counting joins,
// aggregate calls, subqueries, and partition-looking WHERE clauses over a
// case-folded copy of the statement. NonPartitionedFilters is
// max(0, whereCount - partitionedFilters).
func AnalyzeComplexity(sql string) Complexity {
	lower := strings.ToLower(sql)

	joins := len(joinRe.FindAllString(lower, -1))
	aggregations := len(aggregationRe.FindAllString(lower, -1))
	subqueries := len(subqueryRe.FindAllString(lower, -1))
	partitioned := len(partitionedRe.FindAllString(lower, -1))
	whereClauses := len(whereRe.FindAllString(lower, -1))

	nonPartitioned := whereClauses - partitioned
	if nonPartitioned < 0 {
		nonPartitioned = 0
	}

	return Complexity{
		Joins:                 joins,
		Aggregations:          aggregations,
		Subqueries:            subqueries,
		PartitionedFilters:    partitioned,
		NonPartitionedFilters: nonPartitioned,
	}
}

// IsMetadataOrCatalog reports whether sql is a metadata/catalog-discovery
// statement (SHOW/DESCRIBE/DESC/SELECT VERSION()/SELECT CURRENT_, or any
// mention of system.jdbc / information_schema). Such statements are
// forced to the small cluster without probing.
func IsMetadataOrCatalog(sql string) bool {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return false
	}
	normalized := strings.ToUpper(strings.TrimSpace(strings.TrimSuffix(trimmed, ";")))

	prefixes := []string{"SHOW", "DESCRIBE", "DESC", "SELECT VERSION()", "SELECT CURRENT_"}
	for _, p := range prefixes {
		if strings.HasPrefix(normalized, p) {
			return true
		}
	}

	lower := strings.ToLower(trimmed)
	return strings.Contains(lower, "system.jdbc") || strings.Contains(lower, "information_schema")
}
