// Package scholar defines core types shared across subsystems.
package scholar

import (
	"sort"
	"time"
)

// Author is the persisted profile of one tracked scholar.
type Author struct {
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	Affiliation  string         `json:"affiliation,omitempty"`
	Homepage     string         `json:"homepage,omitempty"`
	Interests    []string       `json:"interests,omitempty"`
	CitedBy      int            `json:"cited_by,omitempty"`
	CitesPerYear map[string]int `json:"cites_per_year,omitempty"`
	Coauthors    []Coauthor     `json:"coauthors,omitempty"`
	Publications []string       `json:"publications"`
	LastScraped  *time.Time     `json:"last_scraped"`
	FetchError   string         `json:"fetch_error,omitempty"`
}

// Coauthor is one entry of the profile's co-author sidebar. Only authors the
// operator tracks get full records; sidebar entries are kept as-is.
type Coauthor struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// HasPublication reports whether the author already references pubID.
func (a *Author) HasPublication(pubID string) bool {
	for _, id := range a.Publications {
		if id == pubID {
			return true
		}
	}
	return false
}

// Publication is the persisted record for a single publication. The ID is the
// source's stable publication key and is the sole deduplication key.
type Publication struct {
	ID           string         `json:"id"`
	Title        string         `json:"title,omitempty"`
	Authors      string         `json:"authors,omitempty"`
	Abstract     string         `json:"abstract,omitempty"`
	Venue        string         `json:"venue,omitempty"`
	Journal      string         `json:"journal,omitempty"`
	Volume       string         `json:"volume,omitempty"`
	Number       string         `json:"number,omitempty"`
	Pages        string         `json:"pages,omitempty"`
	Publisher    string         `json:"publisher,omitempty"`
	Year         string         `json:"year,omitempty"`
	NumCitations *int           `json:"num_citations,omitempty"`
	CitesPerYear map[string]int `json:"cites_per_year,omitempty"`
	PubURL       string         `json:"pub_url,omitempty"`
	RelatedURL   string         `json:"related_url,omitempty"`
	URLs         []string       `json:"urls,omitempty"`
	AuthorIDs    []string       `json:"author_ids"`
	LastScraped  *time.Time     `json:"last_scraped"`
	FetchError   string         `json:"fetch_error,omitempty"`
}

// AddAuthorID inserts authorID into the publication's author set, keeping the
// set sorted so the persisted form is deterministic.
func (p *Publication) AddAuthorID(authorID string) {
	for _, id := range p.AuthorIDs {
		if id == authorID {
			return
		}
	}
	p.AuthorIDs = append(p.AuthorIDs, authorID)
	sort.Strings(p.AuthorIDs)
}

// PublicationFields carries the typed output of a publication-page parse.
// Zero values mean the source did not report the field on this fetch; the
// merge engine never lets them erase previously known data.
type PublicationFields struct {
	Title        string
	Authors      string
	Abstract     string
	Venue        string
	Journal      string
	Volume       string
	Number       string
	Pages        string
	Publisher    string
	Year         string
	NumCitations *int
	CitesPerYear map[string]int
	PubURL       string
	RelatedURL   string
	URLs         []string
}

// AuthorProfile carries the typed output of an author-page parse.
type AuthorProfile struct {
	Name         string
	Affiliation  string
	Homepage     string
	Interests    []string
	CitedBy      int
	CitesPerYear map[string]int
	Coauthors    []Coauthor
}

// PublicationRef is one row of an author's publication list.
type PublicationRef struct {
	ID    string
	Title string
	URL   string
}

// Dataset is the top-level aggregate persisted in the results file.
type Dataset struct {
	Authors      map[string]*Author      `json:"authors"`
	Publications map[string]*Publication `json:"publications"`
}

// NewDataset allocates an empty Dataset.
func NewDataset() *Dataset {
	return &Dataset{
		Authors:      make(map[string]*Author),
		Publications: make(map[string]*Publication),
	}
}

// EnsureAuthor returns the Author for id, creating an empty record on first
// encounter. Authors are never deleted automatically.
func (d *Dataset) EnsureAuthor(id string) *Author {
	if a, ok := d.Authors[id]; ok {
		return a
	}
	a := &Author{ID: id, Publications: []string{}}
	d.Authors[id] = a
	return a
}

// Cookie is a single browser cookie captured during a manual solve.
type Cookie struct {
	Name    string     `json:"name"`
	Value   string     `json:"value"`
	Domain  string     `json:"domain,omitempty"`
	Path    string     `json:"path,omitempty"`
	Expires *time.Time `json:"expires,omitempty"`
}

// SessionState is the anti-bot session blob persisted between runs. The
// scheduler treats it as a capability token and never inspects its contents.
type SessionState struct {
	Cookies      []Cookie          `json:"cookies"`
	LocalStorage map[string]string `json:"local_storage,omitempty"`
	CapturedAt   time.Time         `json:"captured_at"`
}

// Document is a raw page returned by the fetch client.
type Document struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
}

// OutcomeKind classifies a single scheduled fetch result.
type OutcomeKind string

// Outcome kinds streamed from the scheduler into the merge engine.
const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome is one unit of scheduler output.
type Outcome struct {
	Kind     OutcomeKind
	AuthorID string
	PubID    string
	Fields   PublicationFields
	Err      *FetchError
	// EndOfBatch marks the last outcome of an author's publication batch and
	// triggers a checkpoint regardless of the item cadence.
	EndOfBatch bool
}

// RunStats summarizes a completed scheduler run.
type RunStats struct {
	AuthorsProcessed int
	Fetched          int
	Skipped          int
	Failed           int
	Retries          int
	CaptchaPauses    int
}
