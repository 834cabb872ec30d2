package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/cargo-gc-target/internal/sweep"
)

func sampleReport() *sweep.Report {
	return &sweep.Report{
		StartedAt: time.Unix(1700000000, 0),
		Duration:  1500 * time.Millisecond,
		Kept:      sweep.Tally{Count: 3, Bytes: 300},
		Deleted:   sweep.Tally{Count: 2, Bytes: 2048},
		Failed:    sweep.Tally{Count: 1, Bytes: 7},
		Anomalies: []string{"cycle: a -> b -> a"},
	}
}

func TestObserve_Gather(t *testing.T) {
	m := New()
	m.Observe(sampleReport())

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"cargo_gc_target_entries",
		"cargo_gc_target_bytes",
		"cargo_gc_target_duration_seconds",
		"cargo_gc_target_last_run_timestamp_seconds",
		"cargo_gc_target_unparseable_records",
		"cargo_gc_target_anomalies",
		"cargo_gc_target_dry_run",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Observe(sampleReport())

	path := filepath.Join(t.TempDir(), "cargo_gc_target.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `cargo_gc_target_entries{outcome="deleted"} 2`)
	assert.Contains(t, text, `cargo_gc_target_bytes{outcome="deleted"} 2048`)
	assert.Contains(t, text, `cargo_gc_target_entries{outcome="failed"} 1`)
	assert.Contains(t, text, "cargo_gc_target_duration_seconds 1.5")
	assert.Contains(t, text, "cargo_gc_target_anomalies 1")
	assert.Contains(t, text, "cargo_gc_target_dry_run 0")
}

func TestWriteTextfile_BadPath(t *testing.T) {
	m := New()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	assert.Error(t, err)
}
