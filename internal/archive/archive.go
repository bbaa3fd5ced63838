// Package archive writes one JSON file per probe outcome to disk, so
// routing decisions can be audited or replayed without hitting the
// backend cluster again.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/AriHenrique/dyrasql/internal/fingerprint"
	"github.com/AriHenrique/dyrasql/internal/probe"
)

// Record is what gets serialized to disk for a single probe invocation.
type Record struct {
	Timestamp      time.Time                  `json:"timestamp"`
	Fingerprint    string                     `json:"fingerprint"`
	OriginalSQL    string                     `json:"original_sql"`
	NormalizedSQL  string                     `json:"normalized_sql"`
	Source         probe.Source               `json:"source,omitempty"`
	ViewError      bool                       `json:"view_error,omitempty"`
	ErrorMessage   string                     `json:"error_message,omitempty"`
	Tables         map[string]probe.TableInfo `json:"tables,omitempty"`
	TotalSizeBytes float64                    `json:"total_size_bytes"`
	TotalRows      float64                    `json:"total_rows"`
	TotalCPUCost   float64                    `json:"total_cpu_cost"`
	TableCount     int                        `json:"table_count"`
}

// Archiver writes Records into a configured directory, one file per
// call, named so files sort chronologically and a fingerprint is
// recognizable at a glance.
type Archiver struct {
	dir     string
	enabled bool
	log     *zap.SugaredLogger
}

// New builds an Archiver. If enabled is false, Save is a no-op — this
// lets deployments turn off disk writes entirely without branching at
// every call site.
func New(dir string, enabled bool, log *zap.SugaredLogger) *Archiver {
	return &Archiver{dir: dir, enabled: enabled, log: log}
}

// Save writes a Record for one probe outcome. A write failure is logged
// and swallowed — the archive is a diagnostic aid, never load-bearing
// for the routing decision it records.
func (a *Archiver) Save(originalSQL, normalizedSQL string, result *probe.Result, probeErr error) {
	if !a.enabled {
		return
	}

	fp := fingerprint.Fingerprint(originalSQL)
	record := Record{
		Timestamp:     time.Now(),
		Fingerprint:   fp,
		OriginalSQL:   originalSQL,
		NormalizedSQL: normalizedSQL,
	}
	if probeErr != nil {
		record.ErrorMessage = probeErr.Error()
	}
	if result != nil {
		record.Source = result.Source
		record.ViewError = result.ViewError
		if record.ErrorMessage == "" {
			record.ErrorMessage = result.ErrorMessage
		}
		record.Tables = result.Tables
		record.TotalSizeBytes = result.TotalSizeBytes
		record.TotalRows = result.TotalRows
		record.TotalCPUCost = result.TotalCPUCost
		record.TableCount = len(result.Tables)
	}

	if err := a.write(record); err != nil {
		a.log.Warnw("failed to write explain archive", "fingerprint", fp, "error", err)
	}
}

func (a *Archiver) write(record Record) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("archive: create directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json", record.Timestamp.Format("20060102T150405.000000"), fingerprint.ShortPrefix(record.Fingerprint, 12))
	path := filepath.Join(a.dir, name)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("archive: write file: %w", err)
	}
	return nil
}
