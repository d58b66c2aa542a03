// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
)

// Source type tags written to the "type" field of a serialized PDFSource.
const (
	SourceTypeZoteroLocal     = "zotero_local"
	SourceTypeZoteroRemote    = "zotero_remote"
	SourceTypeDirectURL       = "direct_url"
	SourceTypeOpenAlexContent = "openalex_content"
)

// PDFSource records where the PDF behind an extraction came from. It is a
// closed set: LocalLibrary, RemoteLibrary, DirectURL, and ContentAPI are the
// only implementations.
type PDFSource interface {
	// SourceType returns the tag used when the source is serialized.
	SourceType() string

	isPDFSource()
}

// LocalLibrary is a PDF read from the Zotero desktop storage directory.
type LocalLibrary struct {
	Path string `json:"path"`
}

// RemoteLibrary is a PDF downloaded from a Zotero web API attachment.
type RemoteLibrary struct {
	ItemKey string `json:"item_key"`
}

// DirectURL is a PDF fetched from an open-access location listed in the
// work's metadata.
type DirectURL struct {
	URL string `json:"url"`
}

// ContentAPI is a PDF served by the OpenAlex content endpoint.
type ContentAPI struct{}

func (LocalLibrary) SourceType() string  { return SourceTypeZoteroLocal }
func (RemoteLibrary) SourceType() string { return SourceTypeZoteroRemote }
func (DirectURL) SourceType() string     { return SourceTypeDirectURL }
func (ContentAPI) SourceType() string    { return SourceTypeOpenAlexContent }

func (LocalLibrary) isPDFSource()  {}
func (RemoteLibrary) isPDFSource() {}
func (DirectURL) isPDFSource()     {}
func (ContentAPI) isPDFSource()    {}

// sourceEnvelope is the flat wire form of every PDFSource arm.
type sourceEnvelope struct {
	Type    string `json:"type"`
	Path    string `json:"path,omitempty"`
	ItemKey string `json:"item_key,omitempty"`
	URL     string `json:"url,omitempty"`
}

// MarshalPDFSource encodes s as a tagged JSON object, e.g.
// {"type":"direct_url","url":"https://arxiv.org/pdf/2301.07041"}.
func MarshalPDFSource(s PDFSource) ([]byte, error) {
	env := sourceEnvelope{}
	switch v := s.(type) {
	case LocalLibrary:
		env.Type, env.Path = v.SourceType(), v.Path
	case RemoteLibrary:
		env.Type, env.ItemKey = v.SourceType(), v.ItemKey
	case DirectURL:
		env.Type, env.URL = v.SourceType(), v.URL
	case ContentAPI:
		env.Type = v.SourceType()
	default:
		return nil, fmt.Errorf("unknown PDF source %T", s)
	}
	return json.Marshal(env)
}

// UnmarshalPDFSource decodes a tagged JSON object produced by MarshalPDFSource.
func UnmarshalPDFSource(data []byte) (PDFSource, error) {
	var env sourceEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing PDF source: %w", err)
	}
	switch env.Type {
	case SourceTypeZoteroLocal:
		return LocalLibrary{Path: env.Path}, nil
	case SourceTypeZoteroRemote:
		return RemoteLibrary{ItemKey: env.ItemKey}, nil
	case SourceTypeDirectURL:
		return DirectURL{URL: env.URL}, nil
	case SourceTypeOpenAlexContent:
		return ContentAPI{}, nil
	default:
		return nil, fmt.Errorf("unknown PDF source type %q", env.Type)
	}
}

// DescribeSource returns a short human-readable provenance line.
func DescribeSource(s PDFSource) string {
	switch v := s.(type) {
	case LocalLibrary:
		return "Zotero storage (" + v.Path + ")"
	case RemoteLibrary:
		return "Zotero attachment " + v.ItemKey
	case DirectURL:
		return v.URL
	case ContentAPI:
		return "OpenAlex content API"
	default:
		return "unknown"
	}
}
