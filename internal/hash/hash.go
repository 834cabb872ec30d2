// Package hash handles the hashes found in a cargo target directory.
//
// Cargo uses 64-bit hashes in two encodings: directory and artifact names
// carry a 16-digit hex suffix (`serde-1a2b3c4d5e6f7a8b`), while unit hash
// files and dependency tuples store the fingerprint as a u64 whose hex form is
// its little-endian bytes. The package also provides a SHA-256 file hasher
// used to digest directory trees.
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Len is the number of hex digits in a cargo hash.
const Len = 16

// IsHex16 reports whether s is exactly 16 lowercase hex digits.
func IsHex16(s string) bool {
	if len(s) != Len {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ParseHex validates and normalizes the contents of a unit hash file.
func ParseHex(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !IsHex16(s) {
		return "", fmt.Errorf("invalid hash %q: want %d lowercase hex digits", s, Len)
	}
	return s, nil
}

// FromU64 encodes a fingerprint u64 the way cargo writes unit hash files.
func FromU64(v uint64) string {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return hex.EncodeToString(b[:])
}

// ToU64 is the inverse of FromU64.
func ToU64(s string) (uint64, error) {
	if !IsHex16(s) {
		return 0, fmt.Errorf("invalid hash %q", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Name is a cargo-managed name split into its parts.
type Name struct {
	// Stem is everything before the hash suffix ("libserde", "serde").
	Stem string
	// Hash is the 16-digit hex suffix.
	Hash string
	// Ext is the remainder after the hash, including the leading dot.
	Ext string
}

// SplitName parses names of the form <stem>-<hash16>[.ext].
// ok is false when the name does not follow that convention.
func SplitName(name string) (n Name, ok bool) {
	idx := strings.LastIndexByte(name, '-')
	for idx > 0 {
		rest := name[idx+1:]
		if len(rest) >= Len && IsHex16(rest[:Len]) {
			ext := rest[Len:]
			if ext == "" || ext[0] == '.' {
				return Name{Stem: name[:idx], Hash: rest[:Len], Ext: ext}, true
			}
		}
		idx = strings.LastIndexByte(name[:idx], '-')
	}
	return Name{}, false
}

// Hasher provides an abstraction for file hashing operations.
type Hasher interface {
	// HashFile computes the hash of the file at the given path.
	HashFile(path string) (string, error)
}

// SHA256Hasher implements Hasher using SHA-256.
type SHA256Hasher struct{}

// NewSHA256Hasher creates a new SHA256Hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// HashFile computes the SHA-256 hash of the file at the given path.
func (h *SHA256Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
