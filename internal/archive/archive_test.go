package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AriHenrique/dyrasql/internal/probe"
)

func TestSaveWritesOneFilePerCall(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, true, zap.NewNop().Sugar())

	result := &probe.Result{
		Tables:         map[string]probe.TableInfo{"iceberg.s.t": {}},
		TotalSizeBytes: 1024,
		Source:         probe.SourceIO,
	}
	a.Save("select * from t", "select * from iceberg.s.t", result, nil)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var record Record
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, float64(1024), record.TotalSizeBytes)
	assert.Equal(t, 1, record.TableCount)
}

func TestSaveDisabledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, false, zap.NewNop().Sugar())

	a.Save("select 1", "select 1", &probe.Result{}, nil)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
