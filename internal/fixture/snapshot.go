package fixture

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/danieljhkim/cargo-gc-target/internal/hash"
)

// Snapshot maps every path under root (relative, slash separated) to the
// SHA-256 of its content. Directories map to "dir" and symlinks to their
// destination.
func Snapshot(t testing.TB, root string) map[string]string {
	t.Helper()
	hasher := hash.NewSHA256Hasher()
	out := make(map[string]string)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		switch {
		case d.Type()&os.ModeSymlink != 0:
			dest, err := os.Readlink(p)
			if err != nil {
				return err
			}
			out[rel] = "-> " + dest
		case d.IsDir():
			out[rel] = "dir"
		default:
			sum, err := hasher.HashFile(p)
			if err != nil {
				return err
			}
			out[rel] = sum
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to snapshot %s: %v", root, err)
	}
	return out
}

// Exists reports whether path exists, without following symlinks.
func Exists(t testing.TB, path string) bool {
	t.Helper()
	_, err := os.Lstat(path)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	t.Fatalf("failed to stat %s: %v", path, err)
	return false
}
