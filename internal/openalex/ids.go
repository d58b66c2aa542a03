// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package openalex

import (
	"regexp"
	"strings"
)

// IDKind classifies a work identifier given on the command line.
type IDKind int

const (
	KindUnknown IDKind = iota
	KindOpenAlex
	KindDOI
	KindArxiv
)

func (k IDKind) String() string {
	switch k {
	case KindOpenAlex:
		return "openalex"
	case KindDOI:
		return "doi"
	case KindArxiv:
		return "arxiv"
	default:
		return "unknown"
	}
}

// openAlexPattern matches short work IDs: "W2741809807".
var openAlexPattern = regexp.MustCompile(`^[Ww]\d+$`)

// doiPattern matches bare DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// arxivPattern matches arXiv IDs: "2301.07041", "arXiv:2301.07041v2".
var arxivPattern = regexp.MustCompile(`^(?:arXiv:)?(\d{4}\.\d{4,5})(?:v\d+)?$`)

// arxivDOIPrefix is the DataCite prefix arXiv registers every paper under.
const arxivDOIPrefix = "10.48550/arXiv."

// Classify determines the identifier kind and returns its normalized form:
// the short ID for OpenAlex works, the bare DOI for DOIs, and the
// version-less ID for arXiv.
func Classify(id string) (IDKind, string) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, idPrefix) {
		id = strings.TrimPrefix(id, idPrefix)
	}
	if openAlexPattern.MatchString(id) {
		return KindOpenAlex, strings.ToUpper(id[:1]) + id[1:]
	}
	if m := arxivPattern.FindStringSubmatch(id); m != nil {
		return KindArxiv, m[1]
	}
	if bare := BareDOI(id); doiPattern.MatchString(bare) {
		return KindDOI, bare
	}
	return KindUnknown, id
}

// WorkPath returns the /works/{path} segment used to look the identifier
// up. arXiv IDs resolve through their DataCite DOI.
func WorkPath(id string) string {
	kind, norm := Classify(id)
	switch kind {
	case KindDOI:
		return doiPrefix + norm
	case KindArxiv:
		return doiPrefix + arxivDOIPrefix + norm
	default:
		return norm
	}
}
