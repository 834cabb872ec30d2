package fingerprint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// PathKind says what a dep-info path is relative to.
type PathKind uint8

const (
	// PackageRelative paths are relative to the package root.
	PackageRelative PathKind = 0
	// TargetRelative paths are relative to the target directory.
	TargetRelative PathKind = 1
)

// DepFile is one file a unit depends on.
type DepFile struct {
	Kind PathKind
	Path string
}

// EnvVar is an environment variable the unit was built against.
type EnvVar struct {
	Key   string
	Value *string
}

// DepInfo is the decoded dep-<unit> companion file.
type DepInfo struct {
	Files []DepFile
	Env   []EnvVar
}

var errTruncated = errors.New("truncated dep-info")

type depInfoReader struct {
	buf []byte
}

func (r *depInfoReader) u8() (uint8, error) {
	if len(r.buf) < 1 {
		return 0, errTruncated
	}
	v := r.buf[0]
	r.buf = r.buf[1:]
	return v, nil
}

func (r *depInfoReader) u32() (uint32, error) {
	if len(r.buf) < 4 {
		return 0, errTruncated
	}
	v := binary.LittleEndian.Uint32(r.buf)
	r.buf = r.buf[4:]
	return v, nil
}

func (r *depInfoReader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(len(r.buf)) {
		return "", errTruncated
	}
	s := string(r.buf[:n])
	r.buf = r.buf[n:]
	return s, nil
}

// count reads an element count and rejects counts the remaining input cannot
// possibly hold, each element needing at least min bytes.
func (r *depInfoReader) count(min int) (int, error) {
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(min) > uint64(len(r.buf)) {
		return 0, errTruncated
	}
	return int(n), nil
}

// ParseDepInfo decodes an encoded dep-info companion.
func ParseDepInfo(data []byte) (*DepInfo, error) {
	r := &depInfoReader{buf: data}

	nfiles, err := r.count(5)
	if err != nil {
		return nil, err
	}
	info := &DepInfo{Files: make([]DepFile, 0, nfiles)}
	for i := 0; i < nfiles; i++ {
		kind, err := r.u8()
		if err != nil {
			return nil, err
		}
		if PathKind(kind) != PackageRelative && PathKind(kind) != TargetRelative {
			return nil, fmt.Errorf("unknown dep-info path kind %d", kind)
		}
		path, err := r.str()
		if err != nil {
			return nil, err
		}
		info.Files = append(info.Files, DepFile{Kind: PathKind(kind), Path: path})
	}

	if len(r.buf) == 0 {
		return info, nil
	}

	nenv, err := r.count(5)
	if err != nil {
		return nil, err
	}
	for i := 0; i < nenv; i++ {
		key, err := r.str()
		if err != nil {
			return nil, err
		}
		has, err := r.u8()
		if err != nil {
			return nil, err
		}
		v := EnvVar{Key: key}
		switch has {
		case 0:
		case 1:
			val, err := r.str()
			if err != nil {
				return nil, err
			}
			v.Value = &val
		default:
			return nil, fmt.Errorf("invalid dep-info env marker %d", has)
		}
		info.Env = append(info.Env, v)
	}

	if len(r.buf) != 0 {
		return nil, fmt.Errorf("dep-info has %d trailing bytes", len(r.buf))
	}
	return info, nil
}

// EncodeDepInfo is the inverse of ParseDepInfo. The env section is written
// only when Env is non-empty.
func EncodeDepInfo(info *DepInfo) []byte {
	var out []byte
	putU32 := func(v int) {
		out = binary.LittleEndian.AppendUint32(out, uint32(v))
	}
	putStr := func(s string) {
		putU32(len(s))
		out = append(out, s...)
	}

	putU32(len(info.Files))
	for _, f := range info.Files {
		out = append(out, byte(f.Kind))
		putStr(f.Path)
	}
	if len(info.Env) == 0 {
		return out
	}
	putU32(len(info.Env))
	for _, e := range info.Env {
		putStr(e.Key)
		if e.Value == nil {
			out = append(out, 0)
			continue
		}
		out = append(out, 1)
		putStr(*e.Value)
	}
	return out
}

// ArtifactRef points at a hashed entry under an area's deps or build
// directory.
type ArtifactRef struct {
	// Area is the area name, or empty when the path did not say.
	Area string
	Hash string
}

// artifactRef extracts the area and hash from a target-relative path such as
// "debug/deps/libfoo-0123456789abcdef.rlib".
func artifactRef(relPath string) (ArtifactRef, bool) {
	parts := strings.Split(strings.ReplaceAll(relPath, "\\", "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] != "deps" && parts[i] != "build" {
			continue
		}
		n, ok := splitHashed(parts[i+1])
		if !ok {
			continue
		}
		return ArtifactRef{Area: strings.Join(parts[:i], "/"), Hash: n}, true
	}
	return ArtifactRef{}, false
}
