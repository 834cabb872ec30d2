package tracer

import "sort"

// LiveSet maps live record keys to the reason they are live. It only grows.
type LiveSet struct {
	reasons map[string]Reason
}

func newLiveSet() *LiveSet {
	return &LiveSet{reasons: make(map[string]Reason)}
}

// NewLiveSet builds a set from explicit reasons.
func NewLiveSet(reasons map[string]Reason) *LiveSet {
	l := newLiveSet()
	for k, r := range reasons {
		l.mark(k, r)
	}
	return l
}

// mark records key as live; the first reason wins.
func (l *LiveSet) mark(key string, r Reason) {
	if _, ok := l.reasons[key]; !ok {
		l.reasons[key] = r
	}
}

// Contains reports whether key is live.
func (l *LiveSet) Contains(key string) bool {
	_, ok := l.reasons[key]
	return ok
}

// Reason returns why key is live.
func (l *LiveSet) Reason(key string) (Reason, bool) {
	r, ok := l.reasons[key]
	return r, ok
}

// Len returns the number of live keys.
func (l *LiveSet) Len() int {
	return len(l.reasons)
}

// Keys returns live keys, sorted.
func (l *LiveSet) Keys() []string {
	keys := make([]string, 0, len(l.reasons))
	for k := range l.reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
