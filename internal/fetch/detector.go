package fetch

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// challengeSelectors are DOM nodes only present on the source's anti-bot
// interstitials.
var challengeSelectors = []string{
	"#gs_captcha_ccl",
	"#recaptcha",
	"form#captcha-form",
	"iframe[src*='recaptcha']",
}

// contentSelectors are DOM nodes present on real profile or citation pages.
var contentSelectors = []string{
	"#gsc_prf_in",
	"#gsc_a_b",
	"#gsc_oci_table",
	"#gsc_oci_title",
}

// ChallengeDetector recognizes CAPTCHA and block interstitials using simple
// HTML signals.
type ChallengeDetector struct {
	keywords [][]byte
}

// NewChallengeDetector constructs a detector with the configured keywords.
func NewChallengeDetector(keywords []string) *ChallengeDetector {
	lower := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lower = append(lower, bytes.ToLower([]byte(kw)))
	}
	return &ChallengeDetector{keywords: lower}
}

// IsChallenge inspects the page for signals that an anti-bot wall was served.
// Keyword matches only count when none of the real-content markers are
// present, so an abstract that merely mentions a keyword cannot trip it.
func (d *ChallengeDetector) IsChallenge(body []byte) bool {
	if d == nil || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return d.containsKeywords(body)
	}
	for _, sel := range challengeSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	for _, sel := range contentSelectors {
		if doc.Find(sel).Length() > 0 {
			return false
		}
	}
	return d.containsKeywords(body)
}

func (d *ChallengeDetector) containsKeywords(body []byte) bool {
	if len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

// DefaultChallengeKeywords mirror the phrases the source uses on its
// interstitial pages.
var DefaultChallengeKeywords = []string{
	"captcha",
	"unusual traffic",
	"not a robot",
	"verify you",
}
