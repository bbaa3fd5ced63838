package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AriHenrique/dyrasql/internal/config"
)

func TestPutThenGet(t *testing.T) {
	tr := New(100, time.Minute)
	defer tr.Stop()

	tr.Put("20260101_120000_00001_abcde", config.ClusterEMRStandard)

	cluster, ok := tr.Get("20260101_120000_00001_abcde")
	assert.True(t, ok)
	assert.Equal(t, config.ClusterEMRStandard, cluster)
}

func TestGetMissingReturnsFalse(t *testing.T) {
	tr := New(100, time.Minute)
	defer tr.Stop()

	_, ok := tr.Get("nonexistent")
	assert.False(t, ok)
}

func TestEvictsOldestWhenOverCapacity(t *testing.T) {
	tr := New(2, time.Minute)
	defer tr.Stop()

	tr.Put("q1", config.ClusterECS)
	time.Sleep(time.Millisecond)
	tr.Put("q2", config.ClusterEMRStandard)
	time.Sleep(time.Millisecond)
	tr.Put("q3", config.ClusterEMROptimized)

	assert.Equal(t, 2, tr.Len())
	_, ok := tr.Get("q1")
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestGetRefreshesLastAccess(t *testing.T) {
	tr := New(100, time.Minute)
	defer tr.Stop()

	tr.Put("q1", config.ClusterECS)
	before := tr.entries["q1"].lastAccess
	time.Sleep(time.Millisecond)
	_, _ = tr.Get("q1")
	assert.True(t, tr.entries["q1"].lastAccess.After(before))

	cluster, ok := tr.Get("q1")
	assert.True(t, ok)
	assert.Equal(t, config.ClusterECS, cluster)
}
