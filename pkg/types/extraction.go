// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProcessingMode selects the DataLab quality tier for advanced extraction.
type ProcessingMode string

const (
	ModeFast     ProcessingMode = "fast"
	ModeBalanced ProcessingMode = "balanced"
	ModeAccurate ProcessingMode = "accurate"
)

// ParseProcessingMode validates a mode name. The empty string is accepted and
// means local extraction.
func ParseProcessingMode(s string) (ProcessingMode, error) {
	switch m := ProcessingMode(s); m {
	case "", ModeFast, ModeBalanced, ModeAccurate:
		return m, nil
	default:
		return "", fmt.Errorf("unknown processing mode %q (want fast, balanced, or accurate)", s)
	}
}

// ExtractionMeta is the meta.json record stored beside each cached extraction.
// ItemKey always equals the cache directory name. Title, when set, takes
// priority over any title fetched from Zotero.
type ExtractionMeta struct {
	ItemKey          string         `json:"item_key" yaml:"item_key"`
	ZoteroUserID     string         `json:"zotero_user_id,omitempty" yaml:"zotero_user_id,omitempty"`
	Title            string         `json:"title,omitempty" yaml:"title,omitempty"`
	Authors          []string       `json:"authors,omitempty" yaml:"authors,omitempty"`
	ItemType         string         `json:"item_type,omitempty" yaml:"item_type,omitempty"`
	Date             string         `json:"date,omitempty" yaml:"date,omitempty"`
	DOI              string         `json:"doi,omitempty" yaml:"doi,omitempty"`
	URL              string         `json:"url,omitempty" yaml:"url,omitempty"`
	PublicationTitle string         `json:"publication_title,omitempty" yaml:"publication_title,omitempty"`
	ExtractedAt      string         `json:"extracted_at,omitempty" yaml:"extracted_at,omitempty"`
	ProcessingMode   ProcessingMode `json:"processing_mode,omitempty" yaml:"processing_mode,omitempty"`
	PDFSource        PDFSource      `json:"-" yaml:"-"`
}

// Stamp sets ExtractedAt to t in RFC 3339 UTC.
func (m *ExtractionMeta) Stamp(t time.Time) {
	m.ExtractedAt = t.UTC().Format(time.RFC3339)
}

type metaAlias ExtractionMeta

// MarshalJSON writes the meta record with pdf_source as a tagged object.
func (m ExtractionMeta) MarshalJSON() ([]byte, error) {
	out := struct {
		metaAlias
		PDFSource json.RawMessage `json:"pdf_source,omitempty"`
	}{metaAlias: metaAlias(m)}
	if m.PDFSource != nil {
		raw, err := MarshalPDFSource(m.PDFSource)
		if err != nil {
			return nil, err
		}
		out.PDFSource = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a meta record. An unrecognized pdf_source is dropped
// rather than failing the whole record.
func (m *ExtractionMeta) UnmarshalJSON(data []byte) error {
	var in struct {
		metaAlias
		PDFSource json.RawMessage `json:"pdf_source"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = ExtractionMeta(in.metaAlias)
	if len(in.PDFSource) > 0 && string(in.PDFSource) != "null" {
		if src, err := UnmarshalPDFSource(in.PDFSource); err == nil {
			m.PDFSource = src
		}
	}
	return nil
}

// WorkTextResult is the outcome of a successful text acquisition.
type WorkTextResult struct {
	Text   string    `json:"text"`
	Source PDFSource `json:"-"`
	WorkID string    `json:"work_id"`
	Title  string    `json:"title,omitempty"`
	DOI    string    `json:"doi,omitempty"`
}

type resultAlias WorkTextResult

// MarshalJSON writes the result with source as a tagged object.
func (r WorkTextResult) MarshalJSON() ([]byte, error) {
	out := struct {
		resultAlias
		Source json.RawMessage `json:"source"`
	}{resultAlias: resultAlias(r)}
	if r.Source != nil {
		raw, err := MarshalPDFSource(r.Source)
		if err != nil {
			return nil, err
		}
		out.Source = raw
	} else {
		out.Source = json.RawMessage("null")
	}
	return json.Marshal(out)
}
