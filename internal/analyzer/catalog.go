package analyzer

import "regexp"

// CanonicalCatalog is the catalog name the normalizer prefixes onto
// unqualified schema.table references.
const CanonicalCatalog = "iceberg"

var knownCatalogs = map[string]bool{
	"iceberg":    true,
	"hive":       true,
	"mysql":      true,
	"postgresql": true,
	"mongodb":    true,
	"system":     true,
}

// quotedPattern matches `FROM "schema"."table"` / `JOIN "schema"."table"`
// across FROM and any JOIN variant, case-insensitively, tolerating
// newlines between the keyword and the reference. A trailing `.` is
// captured so a three-part reference can be recognized and left alone.
var quotedPattern = regexp.MustCompile(`(?is)\b(from|(?:(?:left|right|full|inner|cross)\s+)?(?:outer\s+)?join)\s+("[\w]+")\.("[\w]+")(\.)?`)

// unquotedPattern matches `FROM schema.table` with exactly two dotted
// parts (a trailing `.part` would make it three-part and must not match).
var unquotedPattern = regexp.MustCompile(`(?is)\b(from|(?:(?:left|right|full|inner|cross)\s+)?(?:outer\s+)?join)\s+([a-zA-Z_][a-zA-Z0-9_]*)\.([a-zA-Z_][a-zA-Z0-9_]*)(\.)?`)

// Normalize rewrites two-part schema.table references (quoted or
// unquoted, in FROM/JOIN position) by prefixing the canonical catalog
// name, unless the leading identifier is already a known catalog or a
// third part follows (a.b.c is already catalog-qualified and untouched).
// Used only to build the probe statement — the client's original
// statement is forwarded unchanged.
func Normalize(sql string) string {
	out := quotedPattern.ReplaceAllStringFunc(sql, func(m string) string {
		sub := quotedPattern.FindStringSubmatch(m)
		keyword, schema, table, thirdPart := sub[1], sub[2], sub[3], sub[4]
		if thirdPart != "" || knownCatalogs[toLowerASCII(schema[1:len(schema)-1])] {
			return m
		}
		return keyword + " " + CanonicalCatalog + "." + schema + "." + table
	})
	out = replaceUnquoted(out)
	return out
}

func replaceUnquoted(sql string) string {
	return unquotedPattern.ReplaceAllStringFunc(sql, func(m string) string {
		sub := unquotedPattern.FindStringSubmatch(m)
		keyword, schema, table, thirdPart := sub[1], sub[2], sub[3], sub[4]

		if thirdPart != "" {
			// three-part reference (a.b.c): leave untouched.
			return m
		}
		if knownCatalogs[toLowerASCII(schema)] {
			return m
		}
		return keyword + " " + CanonicalCatalog + "." + schema + "." + table
	})
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
