package scanning

import (
	"sort"

	"diecastscan/internal/catalog"
)

// CodeIndex is the set of known toy numbers a session matches against. It
// is built once per session and read-only afterwards. Iteration order is
// lexical, so the same span always matches the same code within a run.
type CodeIndex struct {
	codes []string
	set   map[string]struct{}
}

// NewCodeIndex builds an index from raw codes. Codes are normalized,
// deduplicated, and sorted; empty values are dropped.
func NewCodeIndex(codes []string) *CodeIndex {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		normalized := catalog.NormalizeToyNumber(code)
		if normalized == "" {
			continue
		}
		set[normalized] = struct{}{}
	}

	sorted := make([]string, 0, len(set))
	for code := range set {
		sorted = append(sorted, code)
	}
	sort.Strings(sorted)

	return &CodeIndex{codes: sorted, set: set}
}

// Empty reports whether the index has no codes; an empty index switches the
// recognizer to generic pattern matching
func (i *CodeIndex) Empty() bool {
	return len(i.codes) == 0
}

// Len returns the number of codes in the index
func (i *CodeIndex) Len() int {
	return len(i.codes)
}

// Codes returns the codes in lexical order
func (i *CodeIndex) Codes() []string {
	return i.codes
}

// Contains reports whether a normalized code is in the index
func (i *CodeIndex) Contains(code string) bool {
	_, ok := i.set[catalog.NormalizeToyNumber(code)]
	return ok
}
