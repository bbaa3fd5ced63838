package probe

// Source discriminates how a Result's estimates were derived: parsed
// from an IO explain plan, or estimated from a distributed plan fallback.
type Source string

const (
	SourceIO               Source = "io"
	SourceDistributedPlan  Source = "distributed_plan"
)

// Filter is a single column-range constraint extracted from an IO explain
// plan's columnConstraints.
type Filter struct {
	Column    string
	LowValue  string
	LowBound  string
	HighValue string
	HighBound string
}

// TableInfo is the per-table estimate the probe produces.
type TableInfo struct {
	Catalog           string
	Schema            string
	Table             string
	EstimatedSizeBytes float64
	EstimatedRows      float64
	CPUCost            float64
	Filters            []Filter
}

// FullName returns the catalog.schema.table form used as the map key.
func (t TableInfo) FullName() string {
	return t.Catalog + "." + t.Schema + "." + t.Table
}

// Result is the outcome of a single probe invocation.
type Result struct {
	Tables         map[string]TableInfo
	TotalSizeBytes float64
	TotalRows      float64
	TotalCPUCost   float64
	Source         Source

	// ViewError is set when the backend rejected the probe statement with
	// an error matching the view-error classification: the caller must
	// not attempt the distributed-explain fallback.
	ViewError bool
	// ErrorMessage carries the backend's error text when ViewError (or any
	// other failure) is set, for the Explain Archiver.
	ErrorMessage string
}

// Empty reports whether the result carries no table estimates at all —
// the condition under which the Decision Engine falls back to a neutral
// volume factor.
func (r *Result) Empty() bool {
	return r == nil || len(r.Tables) == 0
}
