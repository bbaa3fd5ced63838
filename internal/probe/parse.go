package probe

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// ioExplainJSON mirrors the shape of Trino's EXPLAIN (TYPE IO) JSON
// payload:
//
//	{"inputTableColumnInfos": [{"table": {"catalog": ..., "schemaTable": {...}},
//	  "constraint": {"columnConstraints": [...]}, "estimate": {...}}]}
type ioExplainJSON struct {
	InputTableColumnInfos []ioTableInfo `json:"inputTableColumnInfos"`
}

type ioTableInfo struct {
	Table struct {
		Catalog     string `json:"catalog"`
		SchemaTable struct {
			Schema string `json:"schema"`
			Table  string `json:"table"`
		} `json:"schemaTable"`
	} `json:"table"`
	Constraint struct {
		ColumnConstraints []ioColumnConstraint `json:"columnConstraints"`
	} `json:"constraint"`
	Estimate struct {
		OutputRowCount   json.Number `json:"outputRowCount"`
		OutputSizeInBytes json.Number `json:"outputSizeInBytes"`
		CPUCost          json.Number `json:"cpuCost"`
	} `json:"estimate"`
}

type ioColumnConstraint struct {
	ColumnName string `json:"columnName"`
	Domain     struct {
		Ranges []struct {
			Low struct {
				Value json.Number `json:"value"`
				Bound string      `json:"bound"`
			} `json:"low"`
			High struct {
				Value json.Number `json:"value"`
				Bound string      `json:"bound"`
			} `json:"high"`
		} `json:"ranges"`
	} `json:"domain"`
}

// parseIOExplain parses a single EXPLAIN (TYPE IO) JSON payload (the
// string carried in the first data row's first column) into a Result.
func parseIOExplain(raw string) (*Result, error) {
	raw = strings.ReplaceAll(raw, "\\n", " ")
	raw = strings.ReplaceAll(raw, "\n", " ")

	var parsed ioExplainJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, err
	}

	result := &Result{Tables: map[string]TableInfo{}, Source: SourceIO}
	for _, in := range parsed.InputTableColumnInfos {
		catalog := in.Table.Catalog
		schema := in.Table.SchemaTable.Schema
		table := in.Table.SchemaTable.Table
		if catalog == "" || schema == "" || table == "" {
			continue
		}

		size := numberOrZero(in.Estimate.OutputSizeInBytes)
		rows := numberOrZero(in.Estimate.OutputRowCount)
		cpu := numberOrZero(in.Estimate.CPUCost)

		var filters []Filter
		for _, cc := range in.Constraint.ColumnConstraints {
			for _, rg := range cc.Domain.Ranges {
				filters = append(filters, Filter{
					Column:    cc.ColumnName,
					LowValue:  rg.Low.Value.String(),
					LowBound:  rg.Low.Bound,
					HighValue: rg.High.Value.String(),
					HighBound: rg.High.Bound,
				})
			}
		}

		info := TableInfo{
			Catalog: catalog, Schema: schema, Table: table,
			EstimatedSizeBytes: size, EstimatedRows: rows, CPUCost: cpu,
			Filters: filters,
		}
		result.Tables[info.FullName()] = info
		result.TotalSizeBytes += size
		result.TotalRows += rows
		result.TotalCPUCost += cpu
	}

	return result, nil
}

func numberOrZero(n json.Number) float64 {
	if n == "" || n == "NaN" {
		return 0
	}
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}

var (
	tableScanPattern   = regexp.MustCompile(`(?i)TableScan\[table\s*=\s*([^\],]+)`)
	scanProjectPattern = regexp.MustCompile(`(?i)ScanProject\[table\s*=\s*([^\],]+)`)
	tableColonPattern  = regexp.MustCompile(`(?i)table:([a-zA-Z_][\w]*\.[a-zA-Z_][\w]*\.[a-zA-Z_][\w]*)`)
	costPattern        = regexp.MustCompile(`(?i)est\.\s*([\d.]+)\s*rows?,\s*([\d.]+)\s*(\w+)`)

	whitespaceRunRe = regexp.MustCompile(`\s+`)

	unitMultipliers = map[string]float64{
		"b": 1, "kb": 1024, "mb": 1024 * 1024, "gb": 1024 * 1024 * 1024, "tb": 1024 * 1024 * 1024 * 1024,
	}
)

// parseDistributedPlan extracts table references and rough cost estimates
// from an EXPLAIN (TYPE DISTRIBUTED) text plan: TableScan[table = ...],
// ScanProject[table = ...], and table:a.b.c tokens name the tables;
// est. <rows> rows, <size> <unit> tokens are summed and distributed
// uniformly across the tables found.
func parseDistributedPlan(text string) *Result {
	result := &Result{Tables: map[string]TableInfo{}, Source: SourceDistributedPlan}

	addRef := func(ref string) {
		ref = whitespaceRunRe.ReplaceAllString(strings.TrimSpace(ref), "")
		if ref == "" {
			return
		}
		parts := strings.Split(ref, ".")
		var catalog, schema, table string
		switch {
		case len(parts) >= 3:
			catalog = parts[0]
			schema = parts[1]
			table = strings.Join(parts[2:], ".")
		case len(parts) == 2:
			catalog = "iceberg"
			schema = parts[0]
			table = parts[1]
		default:
			return
		}
		info := TableInfo{Catalog: catalog, Schema: schema, Table: table}
		if _, exists := result.Tables[info.FullName()]; !exists {
			result.Tables[info.FullName()] = info
		}
	}

	for _, pattern := range []*regexp.Regexp{tableScanPattern, scanProjectPattern, tableColonPattern} {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			addRef(m[1])
		}
	}

	var totalRows, totalBytes float64
	for _, m := range costPattern.FindAllStringSubmatch(text, -1) {
		rows, err1 := strconv.ParseFloat(m[1], 64)
		size, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		mult, ok := unitMultipliers[strings.ToLower(m[3])]
		if !ok {
			mult = 1
		}
		totalRows += rows
		totalBytes += size * mult
	}

	numTables := len(result.Tables)
	if numTables > 0 && totalBytes > 0 {
		perTableSize := totalBytes / float64(numTables)
		perTableRows := totalRows / float64(numTables)
		for name, info := range result.Tables {
			info.EstimatedSizeBytes = perTableSize
			info.EstimatedRows = perTableRows
			result.Tables[name] = info
		}
	}
	result.TotalSizeBytes = totalBytes
	result.TotalRows = totalRows

	return result
}

// viewErrorMessages are the substrings (case-insensitive) that classify a
// backend statement error as a view-resolution problem rather than a
// transient or unknown failure.
var viewErrorMessages = []string{
	"failed analyzing stored view",
	"catalog",
	"not found",
	"view",
	"cannot be resolved",
}

func isViewError(message string) bool {
	lower := strings.ToLower(message)
	for _, needle := range viewErrorMessages {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
