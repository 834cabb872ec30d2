// Package fingerprint reads the bookkeeping cargo keeps in a target directory.
//
// Each area (a profile directory, optionally under a target triple) holds a
// .fingerprint directory with one record directory per build unit. A record
// directory is named <pkg>-<hash16> and contains, per unit flavor, a unit hash
// file, a JSON metadata file, and an encoded dep-info companion. The Reader
// turns all of that into a Store: an arena of Records keyed by
// <area>/<pkg>-<hash16> with upstream edges already resolved.
//
// Key concepts:
//   - Area: one profile directory, host or cross-compiled
//   - Record: one .fingerprint entry with its units, outputs, and edges
//   - Unparseable: a record that could not be fully read; never treated as dead
//   - FormatError: the directory does not look like a supported target layout
//
// The package is read-only. It never modifies the target directory.
package fingerprint
