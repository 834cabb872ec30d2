package fixture

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
)

func TestAddUnit_WritesRecordAndOutputs(t *testing.T) {
	tg := NewTarget(t, filepath.Join(t.TempDir(), "target"))

	lib := tg.AddUnit(UnitSpec{Package: "my-lib", Kind: fingerprint.KindLib, Uplift: true})
	bin := tg.AddUnit(UnitSpec{Package: "app", Kind: fingerprint.KindBin, Deps: []*Unit{lib}, Uplift: true})

	assert.Equal(t, "debug/my-lib-"+lib.Spec.Hash, lib.Key)
	assert.True(t, Exists(t, filepath.Join(lib.RecordDir, "lib-my-lib")))
	assert.True(t, Exists(t, filepath.Join(lib.RecordDir, "lib-my-lib.json")))
	assert.True(t, Exists(t, filepath.Join(lib.RecordDir, "dep-lib-my-lib")))
	assert.True(t, Exists(t, filepath.Join(tg.Dir, "debug", "deps", "libmy_lib-"+lib.Spec.Hash+".rlib")))
	assert.True(t, Exists(t, filepath.Join(tg.Dir, "debug", "libmy_lib.rlib")))
	assert.True(t, Exists(t, filepath.Join(tg.Dir, "debug", "app")))

	meta, err := fingerprint.ParseMetadata(MetadataJSON(t, bin.Spec))
	require.NoError(t, err)
	require.Len(t, meta.Deps, 1)
	assert.Equal(t, lib.Spec.Fingerprint, meta.Deps[0].Fingerprint)
	assert.Equal(t, "my_lib", meta.Deps[0].Name)
}

func TestHashOf_Stable(t *testing.T) {
	a := HashOf("debug", "serde")
	assert.Equal(t, a, HashOf("debug", "serde"))
	assert.NotEqual(t, a, HashOf("release", "serde"))
	assert.Len(t, a, 16)
}

func TestSnapshot(t *testing.T) {
	tg := NewTarget(t, filepath.Join(t.TempDir(), "target"))
	tg.WriteFile("debug/a.txt", []byte("a"))

	before := Snapshot(t, tg.Dir)
	assert.Equal(t, "dir", before["debug"])
	assert.Contains(t, before, "debug/a.txt")

	tg.WriteFile("debug/a.txt", []byte("b"))
	after := Snapshot(t, tg.Dir)
	assert.NotEqual(t, before["debug/a.txt"], after["debug/a.txt"])
}
