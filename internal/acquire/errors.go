// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/papers/internal/openalex"
)

// NoPDFError reports that no source produced text for a work. It is
// recoverable: interactive callers hand it to the fallback coordinator.
type NoPDFError struct {
	WorkID string
	Title  string
	DOI    string
	// Work is the resolved record, for callers that retry acquisition.
	Work *openalex.Work
}

func (e *NoPDFError) Error() string {
	name := e.WorkID
	if e.Title != "" {
		name = fmt.Sprintf("%s (%s)", e.WorkID, e.Title)
	}
	return "no PDF found for " + name
}

// NoPDFMessage renders a NoPDFError for people: what was tried and what to
// do next. libraryConfigured says whether Zotero credentials are set. Other
// errors are returned unchanged.
func NoPDFMessage(err error, libraryConfigured bool) string {
	var np *NoPDFError
	if !errors.As(err, &np) {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(np.Error())
	b.WriteString(".")
	if page := openalex.LandingPage(np.DOI); page != "" {
		fmt.Fprintf(&b, " Open %s to get the PDF", page)
		if libraryConfigured {
			b.WriteString(", add it to your Zotero library, then retry.")
		} else {
			b.WriteString(".")
		}
	}
	if !libraryConfigured {
		b.WriteString(" Zotero is not configured; set ZOTERO_USER_ID and ZOTERO_API_KEY to search your library.")
	}
	return b.String()
}
