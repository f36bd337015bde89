// Package parse turns raw profile and citation pages into typed records.
package parse

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/scholar-tracker/internal/scholar"
)

// HTMLParser implements scholar.Parser against the Google Scholar citation
// pages. Selectors target the public profile DOM.
type HTMLParser struct {
	logger *zap.Logger
}

// NewHTMLParser constructs a parser.
func NewHTMLParser(logger *zap.Logger) *HTMLParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTMLParser{logger: logger}
}

// ParseAuthorPage extracts the author profile and the publication list rows.
func (p *HTMLParser) ParseAuthorPage(doc scholar.Document) (scholar.AuthorProfile, []scholar.PublicationRef, error) {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return scholar.AuthorProfile{}, nil, scholar.NewFetchError(scholar.KindParse, doc.URL, err)
	}

	name := strings.TrimSpace(root.Find("#gsc_prf_in").First().Text())
	if name == "" {
		return scholar.AuthorProfile{}, nil, scholar.NewFetchError(scholar.KindParse, doc.URL,
			fmt.Errorf("profile name element not found"))
	}

	profile := scholar.AuthorProfile{
		Name:        name,
		Affiliation: strings.TrimSpace(root.Find(".gsc_prf_il").First().Text()),
	}
	if href, ok := root.Find("#gsc_prf_ivh a").First().Attr("href"); ok {
		profile.Homepage = strings.TrimSpace(href)
	}
	root.Find("#gsc_prf_int a").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			profile.Interests = append(profile.Interests, t)
		}
	})
	// First column of the citation stats table is the all-time count.
	if cited := strings.TrimSpace(root.Find("#gsc_rsb_st td.gsc_rsb_std").First().Text()); cited != "" {
		if n, err := strconv.Atoi(strings.ReplaceAll(cited, ",", "")); err == nil {
			profile.CitedBy = n
		}
	}
	profile.CitesPerYear = parseProfileHistogram(root)
	profile.Coauthors = parseCoauthors(root)

	var refs []scholar.PublicationRef
	root.Find("#gsc_a_b tr.gsc_a_tr").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a.gsc_a_at").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		id := citationID(href)
		if id == "" {
			p.logger.Debug("publication row without citation id", zap.String("href", href))
			return
		}
		refs = append(refs, scholar.PublicationRef{
			ID:    id,
			Title: strings.TrimSpace(link.Text()),
			URL:   absoluteURL(href),
		})
	})

	return profile, refs, nil
}

// ParsePublicationPage extracts the detail fields of a single citation page.
func (p *HTMLParser) ParsePublicationPage(doc scholar.Document) (scholar.PublicationFields, error) {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return scholar.PublicationFields{}, scholar.NewFetchError(scholar.KindParse, doc.URL, err)
	}

	title := root.Find("#gsc_oci_title").First()
	fields := scholar.PublicationFields{
		Title: strings.TrimSpace(title.Text()),
	}
	if fields.Title == "" {
		return scholar.PublicationFields{}, scholar.NewFetchError(scholar.KindParse, doc.URL,
			fmt.Errorf("citation title element not found"))
	}
	if href, ok := title.Find("a").First().Attr("href"); ok {
		fields.PubURL = href
	}

	root.Find("#gsc_oci_table .gs_scl").Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find(".gsc_oci_field").Text())
		value := row.Find(".gsc_oci_value")
		text := strings.TrimSpace(value.Text())
		switch label {
		case "Authors":
			fields.Authors = text
		case "Publication date":
			fields.Year = publicationYear(text)
		case "Journal":
			fields.Journal = text
		case "Conference", "Book", "Source":
			fields.Venue = text
		case "Volume":
			fields.Volume = text
		case "Issue":
			fields.Number = text
		case "Pages":
			fields.Pages = text
		case "Publisher":
			fields.Publisher = text
		case "Description":
			fields.Abstract = text
		case "Total citations":
			fields.NumCitations, fields.RelatedURL = parseCitations(value)
			fields.CitesPerYear = parseCitesPerYear(value)
		}
	})

	return fields, nil
}

// citationID pulls the citation_for_view parameter, the source's stable
// publication key of the form "AUTHORID:PUBCODE".
func citationID(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("citation_for_view")
}

func absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return scholar.BaseURL + href
}

// publicationYear keeps only the leading year of a "YYYY/M/D" date.
func publicationYear(text string) string {
	if i := strings.IndexByte(text, '/'); i > 0 {
		return text[:i]
	}
	return text
}

// parseCitations reads the "Cited by N" anchor and, when present, the related
// articles link next to it.
func parseCitations(value *goquery.Selection) (*int, string) {
	var count *int
	var related string
	value.Find("a").Each(func(_ int, a *goquery.Selection) {
		text := strings.TrimSpace(a.Text())
		switch {
		case strings.HasPrefix(text, "Cited by "):
			if n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimPrefix(text, "Cited by "), ",", "")); err == nil {
				count = &n
			}
		case strings.EqualFold(text, "Related articles"):
			related, _ = a.Attr("href")
		}
	})
	return count, related
}

// parseProfileHistogram zips the year labels with the bar values of the
// profile-level citation histogram in the stats sidebar.
func parseProfileHistogram(root *goquery.Document) map[string]int {
	years := root.Find(".gsc_md_hist_b .gsc_g_t")
	bars := root.Find(".gsc_md_hist_b .gsc_g_al")
	if years.Length() == 0 || years.Length() != bars.Length() {
		return nil
	}
	out := make(map[string]int, years.Length())
	years.Each(func(i int, y *goquery.Selection) {
		year := strings.TrimSpace(y.Text())
		count, err := strconv.Atoi(strings.TrimSpace(bars.Eq(i).Text()))
		if year == "" || err != nil {
			return
		}
		out[year] = count
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseCoauthors reads the co-author sidebar list. Entries without a profile
// link keep an empty ID.
func parseCoauthors(root *goquery.Document) []scholar.Coauthor {
	var out []scholar.Coauthor
	root.Find("ul.gsc_rsb_a li").Each(func(_ int, li *goquery.Selection) {
		link := li.Find(".gsc_rsb_a_desc a").First()
		name := strings.TrimSpace(link.Text())
		if name == "" {
			return
		}
		co := scholar.Coauthor{
			Name:        name,
			Affiliation: strings.TrimSpace(li.Find(".gsc_rsb_a_ext").First().Text()),
		}
		if href, ok := link.Attr("href"); ok {
			if u, err := url.Parse(href); err == nil {
				co.ID = u.Query().Get("user")
			}
		}
		out = append(out, co)
	})
	return out
}

// parseCitesPerYear zips the year labels with the bar values of the citation
// histogram.
func parseCitesPerYear(value *goquery.Selection) map[string]int {
	years := value.Find(".gsc_oci_g_t")
	bars := value.Find(".gsc_oci_g_al")
	if years.Length() == 0 || years.Length() != bars.Length() {
		return nil
	}
	out := make(map[string]int, years.Length())
	years.Each(func(i int, y *goquery.Selection) {
		year := strings.TrimSpace(y.Text())
		count, err := strconv.Atoi(strings.TrimSpace(bars.Eq(i).Text()))
		if year == "" || err != nil {
			return
		}
		out[year] = count
	})
	if len(out) == 0 {
		return nil
	}
	return out
}
