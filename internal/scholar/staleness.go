package scholar

import "time"

// NeedsRefresh reports whether a record must be re-fetched. A nil lastScraped
// means the record was never successfully fetched. The threshold is inclusive:
// a record exactly thresholdDays old is still fresh. A zero or negative
// threshold forces a refresh of everything.
func NeedsRefresh(lastScraped *time.Time, thresholdDays int, now time.Time) bool {
	if thresholdDays <= 0 {
		return true
	}
	if lastScraped == nil {
		return true
	}
	age := now.Sub(*lastScraped)
	return age > time.Duration(thresholdDays)*24*time.Hour
}
