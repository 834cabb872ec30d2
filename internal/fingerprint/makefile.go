package fingerprint

import (
	"strings"

	"github.com/danieljhkim/cargo-gc-target/internal/hash"
)

// MakeRule is one "targets: prerequisites" line of a compiler .d file.
type MakeRule struct {
	Targets []string
	Prereqs []string
}

// ParseMakefileDeps parses the Makefile-syntax dep-info rustc writes to
// deps/<crate>-<hash16>.d. Comments, blank lines and variable lines are
// skipped; escaped spaces and line continuations are honored.
func ParseMakefileDeps(data []byte) []MakeRule {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\\\n", " ")

	var rules []MakeRule
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		sep := ruleSeparator(line)
		if sep < 0 {
			continue
		}
		rule := MakeRule{
			Targets: splitMakeWords(line[:sep]),
			Prereqs: splitMakeWords(line[sep+1:]),
		}
		if len(rule.Targets) == 0 {
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}

// ruleSeparator finds the colon that ends the target list: unescaped and
// followed by whitespace or the end of the line, so drive letters survive.
func ruleSeparator(line string) int {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case ':':
			if i+1 == len(line) || line[i+1] == ' ' || line[i+1] == '\t' {
				return i
			}
		}
	}
	return -1
}

func splitMakeWords(s string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '#' || s[i+1] == ':'):
			cur.WriteByte(s[i+1])
			i++
		case c == '$' && i+1 < len(s) && s[i+1] == '$':
			cur.WriteByte('$')
			i++
		case c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return words
}

func splitHashed(name string) (string, bool) {
	n, ok := hash.SplitName(name)
	if !ok {
		return "", false
	}
	return n.Hash, true
}
