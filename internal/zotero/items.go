// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package zotero

import (
	"net/url"
	"strconv"
	"strings"
)

// Link modes and content types used when classifying attachments.
const (
	LinkModeImportedFile = "imported_file"
	LinkModeImportedURL  = "imported_url"
	ContentTypePDF       = "application/pdf"
)

// MaxKeysPerRequest is the server-side limit on itemKey lists.
const MaxKeysPerRequest = 50

// Item is a Zotero item as returned by the web API.
type Item struct {
	Key     string   `json:"key"`
	Version int      `json:"version"`
	Data    ItemData `json:"data"`
}

// ItemData holds the editable fields of an item. Only the fields this
// module reads are declared.
type ItemData struct {
	Key              string    `json:"key"`
	ItemType         string    `json:"itemType"`
	Title            string    `json:"title"`
	DOI              string    `json:"DOI,omitempty"`
	Date             string    `json:"date,omitempty"`
	URL              string    `json:"url,omitempty"`
	PublicationTitle string    `json:"publicationTitle,omitempty"`
	Creators         []Creator `json:"creators,omitempty"`
	ParentItem       string    `json:"parentItem,omitempty"`
	LinkMode         string    `json:"linkMode,omitempty"`
	ContentType      string    `json:"contentType,omitempty"`
	Filename         string    `json:"filename,omitempty"`
}

// Creator is one author/editor entry.
type Creator struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
}

// DisplayName returns "First Last", or the single-field name.
func (c Creator) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// IsPDFAttachment reports whether the item is a stored PDF file.
func (d ItemData) IsPDFAttachment() bool {
	return d.ContentType == ContentTypePDF &&
		(d.LinkMode == LinkModeImportedFile || d.LinkMode == LinkModeImportedURL)
}

// Authors returns the display names of all creators.
func (d ItemData) Authors() []string {
	if len(d.Creators) == 0 {
		return nil
	}
	out := make([]string, 0, len(d.Creators))
	for _, c := range d.Creators {
		if n := c.DisplayName(); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// ItemListParams filters an item listing. Zero values are omitted.
type ItemListParams struct {
	// Top restricts the listing to top-level items (/items/top).
	Top      bool
	ItemType string
	Q        string
	QMode    string
	ItemKeys []string
	Limit    int
	Start    int
}

// ItemPage is one page of a listing.
type ItemPage struct {
	Items []Item
	Total int
}

func (p ItemListParams) encode() string {
	v := url.Values{}
	if p.ItemType != "" {
		v.Set("itemType", p.ItemType)
	}
	if p.Q != "" {
		v.Set("q", p.Q)
	}
	if p.QMode != "" {
		v.Set("qmode", p.QMode)
	}
	if len(p.ItemKeys) > 0 {
		v.Set("itemKey", strings.Join(p.ItemKeys, ","))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Start > 0 {
		v.Set("start", strconv.Itoa(p.Start))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}
