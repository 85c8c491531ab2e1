package models

import "time"

// DateLayout is the calendar date format used by the sunrise/sunset API and
// as the cache key.
const DateLayout = "2006-01-02"

// DayRecord holds the sunrise/sunset data for one calendar date. Times are
// kept as the local strings the API returns.
type DayRecord struct {
	Date      time.Time
	Sunrise   string
	Sunset    string
	DayLength string // "H:MM:SS"
}

// Key returns the record's date as YYYY-MM-DD.
func (r DayRecord) Key() string {
	return r.Date.Format(DateLayout)
}

type SearchResult struct {
	Today        DayRecord
	TodayMinutes int

	// BestMatch is nil when every candidate in the window failed to fetch or
	// none was accepted by the search policy.
	BestMatch    *DayRecord
	MatchMinutes int
	DiffMinutes  *int
	DaysAgo      int

	// Examined counts historical candidates that were fetched successfully
	// before the scan stopped. Skipped counts candidates whose fetch failed.
	Examined int
	Skipped  int
}

// HasMatch reports whether a similar day was found.
func (r SearchResult) HasMatch() bool {
	return r.BestMatch != nil && r.DiffMinutes != nil
}
