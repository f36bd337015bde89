package fetch

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JakeFAU/scholar-tracker/internal/scholar"
)

// Classifier maps completed responses onto fetch failure kinds.
type Classifier struct {
	detector *ChallengeDetector
}

// NewClassifier builds a classifier around the given challenge detector.
func NewClassifier(detector *ChallengeDetector) *Classifier {
	return &Classifier{detector: detector}
}

// Classify returns the failure for a completed response, or nil when the
// document is usable. Challenge signals outrank status codes: the source
// serves CAPTCHA walls with a 200 as readily as a 429.
func (c *Classifier) Classify(statusCode int, finalURL string, body []byte) *scholar.FetchError {
	if strings.Contains(finalURL, "/sorry") || c.detector.IsChallenge(body) {
		return scholar.NewFetchError(scholar.KindCaptcha, finalURL,
			fmt.Errorf("challenge page served (status %d)", statusCode))
	}
	switch {
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return scholar.NewFetchError(scholar.KindNotFound, finalURL,
			fmt.Errorf("status %d", statusCode))
	case statusCode == http.StatusForbidden || statusCode == http.StatusTooManyRequests:
		return scholar.NewFetchError(scholar.KindBlocked, finalURL,
			fmt.Errorf("status %d", statusCode))
	case statusCode >= 200 && statusCode < 300:
		return nil
	default:
		return scholar.NewFetchError(scholar.KindTransient, finalURL,
			fmt.Errorf("status %d", statusCode))
	}
}
