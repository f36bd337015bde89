package scholar

import (
	"fmt"
	"net/url"
)

// BaseURL is the root of the scraped source.
const BaseURL = "https://scholar.google.com"

// ProfileURL returns the publication-list page for an author ID.
func ProfileURL(authorID string) string {
	return fmt.Sprintf("%s/citations?user=%s&hl=en&pagesize=100", BaseURL, url.QueryEscape(authorID))
}

// CitationURL returns the detail page for a publication key. The key combines
// the author id with a per-publication id, matching the source's
// citation_for_view parameter.
func CitationURL(pubID string) string {
	return fmt.Sprintf("%s/citations?view_op=view_citation&hl=en&citation_for_view=%s", BaseURL, url.QueryEscape(pubID))
}
