package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/workspace"
)

type rec struct {
	area  string
	name  string
	unit  string
	deps  []string
	flags string
}

func buildStore(t *testing.T, recs ...rec) *fingerprint.Store {
	t.Helper()
	areas := map[string]bool{}
	var records []*fingerprint.Record
	for _, r := range recs {
		if r.area == "" {
			r.area = "debug"
		}
		areas[r.area] = true
		pkg := r.name[:len(r.name)-17]
		un, ok := fingerprint.ParseUnitName(r.unit)
		require.True(t, ok, r.unit)
		record := &fingerprint.Record{
			Key:     fingerprint.Key(r.area, r.name),
			Area:    r.area,
			Name:    r.name,
			Package: pkg,
			Hash:    r.name[len(r.name)-16:],
			Units:   []fingerprint.Unit{{Name: un}},
			Deps:    r.deps,
		}
		switch r.flags {
		case "unparseable":
			record.Unparseable = true
		case "opaque":
			record.Unparseable = true
			record.Opaque = true
		}
		records = append(records, record)
	}
	var list []fingerprint.Area
	for a := range areas {
		list = append(list, fingerprint.Area{Name: a, Profile: a})
	}
	return fingerprint.NewStore("/t", list, records)
}

const (
	hb = "000000000000000b"
	hl = "000000000000000c"
	hm = "000000000000000d"
	hx = "000000000000000e"
)

func TestTrace_Closure(t *testing.T) {
	store := buildStore(t,
		rec{name: "app-" + hb, unit: "bin-app", deps: []string{"debug/lib-" + hl}},
		rec{name: "lib-" + hl, unit: "lib-lib", deps: []string{"debug/dep-" + hx}},
		rec{name: "dep-" + hx, unit: "lib-dep"},
		rec{name: "old-" + hm, unit: "lib-old"},
	)

	res := New(nil).Trace(store, []workspace.Unit{{Package: "app", Kind: workspace.TargetBin, Target: "app"}})

	assert.Equal(t, []string{"debug/app-" + hb}, res.Roots)
	assert.Equal(t, []string{"debug/app-" + hb, "debug/dep-" + hx, "debug/lib-" + hl}, res.Live.Keys())
	assert.False(t, res.Live.Contains("debug/old-"+hm))

	r, _ := res.Live.Reason("debug/app-" + hb)
	assert.Equal(t, ReasonRoot, r)
	r, _ = res.Live.Reason("debug/dep-" + hx)
	assert.Equal(t, ReasonReachable, r)

	// Every edge out of a live record lands on a live record.
	for _, key := range res.Live.Keys() {
		record, _ := store.Record(key)
		for _, d := range record.Deps {
			assert.True(t, res.Live.Contains(d), "%s -> %s", key, d)
		}
	}
}

func TestTrace_Cycle(t *testing.T) {
	store := buildStore(t,
		rec{name: "a-" + hb, unit: "lib-a", deps: []string{"debug/b-" + hl}},
		rec{name: "b-" + hl, unit: "lib-b", deps: []string{"debug/a-" + hb}},
	)

	res := New(nil).Trace(store, []workspace.Unit{{Package: "a", Kind: workspace.TargetLib}})

	assert.Equal(t, 2, res.Live.Len())
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, "cycle", res.Anomalies[0].Kind)
	assert.Equal(t, []string{"debug/a-" + hb, "debug/b-" + hl, "debug/a-" + hb}, res.Anomalies[0].Keys)
}

func TestTrace_UnparseableIsLiveWithDeps(t *testing.T) {
	store := buildStore(t,
		rec{name: "app-" + hb, unit: "bin-app", deps: []string{"debug/lib-" + hl}},
		rec{name: "lib-" + hl, unit: "lib-lib", deps: []string{"debug/dep-" + hx}, flags: "unparseable"},
		rec{name: "dep-" + hx, unit: "lib-dep"},
		rec{name: "old-" + hm, unit: "lib-old"},
	)

	res := New(nil).Trace(store, nil)

	r, ok := res.Live.Reason("debug/lib-" + hl)
	require.True(t, ok)
	assert.Equal(t, ReasonUnparseable, r)
	assert.True(t, res.Live.Contains("debug/dep-"+hx))
	assert.False(t, res.Live.Contains("debug/app-"+hb))
	assert.False(t, res.Live.Contains("debug/old-"+hm))
	assert.Empty(t, res.OpaqueAreas)
}

func TestTrace_OpaqueKeepsArea(t *testing.T) {
	store := buildStore(t,
		rec{name: "bad-" + hb, unit: "lib-bad", flags: "opaque"},
		rec{name: "old-" + hm, unit: "lib-old"},
		rec{area: "release", name: "old-" + hx, unit: "lib-old"},
	)

	res := New(nil).Trace(store, nil)

	assert.Equal(t, []string{"debug"}, res.OpaqueAreas)
	r, _ := res.Live.Reason("debug/old-" + hm)
	assert.Equal(t, ReasonOpaqueArea, r)
	assert.False(t, res.Live.Contains("release/old-"+hx))
}

func TestTrace_MissingEdgeIgnored(t *testing.T) {
	store := buildStore(t,
		rec{name: "app-" + hb, unit: "bin-app", deps: []string{"debug/ghost-" + hm}},
	)

	res := New(nil).Trace(store, []workspace.Unit{{Package: "app", Kind: workspace.TargetBin}})
	assert.Equal(t, []string{"debug/app-" + hb}, res.Live.Keys())
	assert.Empty(t, res.Anomalies)
}

func TestTrace_UnmatchedRoot(t *testing.T) {
	store := buildStore(t, rec{name: "app-" + hb, unit: "bin-app"})

	res := New(nil).Trace(store, []workspace.Unit{{Package: "missing", Kind: workspace.TargetLib}})
	assert.Equal(t, 0, res.Live.Len())
	require.Len(t, res.UnmatchedRoots, 1)
	assert.Equal(t, "missing", res.UnmatchedRoots[0].Package)
}

func TestMatchRoot(t *testing.T) {
	store := buildStore(t,
		rec{name: "my-lib-" + hb, unit: "lib-my_lib"},
		rec{name: "my-lib-" + hl, unit: "test-lib-my_lib"},
		rec{name: "my-lib-" + hm, unit: "build-script-build-script-build"},
		rec{name: "my-lib-" + hx, unit: "run-build-script-build-script-build"},
		rec{name: "my-lib-000000000000000f", unit: "example-demo"},
		rec{area: "release", name: "my-lib-0000000000000010", unit: "lib-my_lib"},
		rec{name: "tool-0000000000000011", unit: "bin-tool"},
		rec{name: "tool-0000000000000012", unit: "integration-test-smoke"},
		rec{name: "tool-0000000000000013", unit: "bench-speed"},
		rec{name: "derive-0000000000000014", unit: "proc-macro-derive"},
	)

	tests := []struct {
		name string
		unit workspace.Unit
		want []string
	}{
		{
			name: "lib in every profile",
			unit: workspace.Unit{Package: "my-lib", Kind: workspace.TargetLib, Target: "my-lib"},
			want: []string{"debug/my-lib-" + hb, "release/my-lib-0000000000000010"},
		},
		{
			name: "lib narrowed by profile",
			unit: workspace.Unit{Package: "my-lib", Kind: workspace.TargetLib, Profile: "release"},
			want: []string{"release/my-lib-0000000000000010"},
		},
		{
			name: "lib pinned by config hash",
			unit: workspace.Unit{Package: "my-lib", Kind: workspace.TargetLib, ConfigHash: hb},
			want: []string{"debug/my-lib-" + hb},
		},
		{
			name: "lib test mode",
			unit: workspace.Unit{Package: "my-lib", Kind: workspace.TargetTest, Target: "my_lib"},
			want: []string{"debug/my-lib-" + hl},
		},
		{
			name: "build script compile and run",
			unit: workspace.Unit{Package: "my-lib", Kind: workspace.TargetCustomBuild},
			want: []string{"debug/my-lib-" + hm, "debug/my-lib-" + hx},
		},
		{
			name: "examples never match",
			unit: workspace.Unit{Package: "my-lib", Kind: workspace.TargetExample, Target: "demo"},
			want: nil,
		},
		{
			name: "integration test",
			unit: workspace.Unit{Package: "tool", Kind: workspace.TargetTest, Target: "smoke"},
			want: []string{"debug/tool-0000000000000012"},
		},
		{
			name: "bench",
			unit: workspace.Unit{Package: "tool", Kind: workspace.TargetBench, Target: "speed"},
			want: []string{"debug/tool-0000000000000013"},
		},
		{
			name: "bin name mismatch",
			unit: workspace.Unit{Package: "tool", Kind: workspace.TargetBin, Target: "other"},
			want: nil,
		},
		{
			name: "proc macro declared as lib",
			unit: workspace.Unit{Package: "derive", Kind: workspace.TargetLib, Target: "derive"},
			want: []string{"debug/derive-0000000000000014"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchRoot(store, tt.unit))
		})
	}
}

func TestLiveSet_FirstReasonWins(t *testing.T) {
	l := NewLiveSet(map[string]Reason{"a": ReasonRoot})
	l.mark("a", ReasonReachable)
	l.mark("b", ReasonReachable)

	r, _ := l.Reason("a")
	assert.Equal(t, ReasonRoot, r)
	assert.Equal(t, []string{"a", "b"}, l.Keys())
}
