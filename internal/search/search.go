// Package search scans a window of past dates for the day whose length best
// matches today's.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lox/daylightmatch/internal/daylight"
	"github.com/lox/daylightmatch/internal/metrics"
	"github.com/lox/daylightmatch/internal/models"
)

// ErrTodayUnavailable wraps the fetch failure for the reference date. No
// comparison is possible without it.
var ErrTodayUnavailable = errors.New("today's daylight data unavailable")

// Fetcher returns the day record for a calendar date.
type Fetcher interface {
	Fetch(ctx context.Context, date time.Time) (models.DayRecord, error)
}

// Window is the inclusive range of days before today that are scanned,
// nearest first.
type Window struct {
	MinDaysAgo int
	MaxDaysAgo int
}

func DefaultWindow() Window {
	return Window{MinDaysAgo: 90, MaxDaysAgo: 270}
}

func (w Window) Validate() error {
	if w.MinDaysAgo < 1 {
		return fmt.Errorf("min days ago must be at least 1, got %d", w.MinDaysAgo)
	}
	if w.MaxDaysAgo < w.MinDaysAgo {
		return fmt.Errorf("max days ago %d is before min days ago %d", w.MaxDaysAgo, w.MinDaysAgo)
	}
	return nil
}

// Size is the number of candidate dates in the window.
func (w Window) Size() int {
	return w.MaxDaysAgo - w.MinDaysAgo + 1
}

// Policy controls which candidates are accepted and when the scan stops.
type Policy struct {
	// EarlyExitDiff stops the scan at the first accepted candidate within this
	// many minutes of today. Negative disables early exit.
	EarlyExitDiff int
	// MaxDiff rejects candidates further than this many minutes from today.
	// Negative means no bound.
	MaxDiff int
}

func DefaultPolicy() Policy {
	return Policy{EarlyExitDiff: 1, MaxDiff: -1}
}

func (p Policy) accepts(diff int) bool {
	return p.MaxDiff < 0 || diff <= p.MaxDiff
}

func (p Policy) stopsAt(diff int) bool {
	return p.EarlyExitDiff >= 0 && diff <= p.EarlyExitDiff
}

type Searcher struct {
	fetcher Fetcher
	window  Window
	policy  Policy
	log     logrus.FieldLogger
}

func New(fetcher Fetcher, window Window, policy Policy, log logrus.FieldLogger) *Searcher {
	return &Searcher{
		fetcher: fetcher,
		window:  window,
		policy:  policy,
		log:     log.WithField("component", "search"),
	}
}

// FindSimilarDay fetches today's record and then each candidate from
// MinDaysAgo to MaxDaysAgo in order, one at a time. A candidate replaces the
// current best only with a strictly smaller difference, so the earliest of
// equally good candidates wins. A failed candidate fetch is logged and
// skipped; a failed fetch for today returns ErrTodayUnavailable.
func (s *Searcher) FindSimilarDay(ctx context.Context, today time.Time) (models.SearchResult, error) {
	if err := s.window.Validate(); err != nil {
		return models.SearchResult{}, fmt.Errorf("invalid window: %w", err)
	}

	todayRec, err := s.fetcher.Fetch(ctx, today)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("%w: %w", ErrTodayUnavailable, err)
	}

	result := models.SearchResult{
		Today:        todayRec,
		TodayMinutes: daylight.Minutes(todayRec.DayLength, s.log.WithField("date", todayRec.Key())),
	}
	s.log.Infof("Today's daylight: %d minutes", result.TodayMinutes)
	s.log.WithFields(logrus.Fields{
		"from_days_ago": s.window.MinDaysAgo,
		"to_days_ago":   s.window.MaxDaysAgo,
	}).Info("Searching for a similar day")

	bestDiff := -1
	for daysAgo := s.window.MinDaysAgo; daysAgo <= s.window.MaxDaysAgo; daysAgo++ {
		if err := ctx.Err(); err != nil {
			return models.SearchResult{}, fmt.Errorf("search interrupted at %d days ago: %w", daysAgo, err)
		}

		candidateDate := todayRec.Date.AddDate(0, 0, -daysAgo)
		candidate, err := s.fetcher.Fetch(ctx, candidateDate)
		if err != nil {
			result.Skipped++
			s.log.WithFields(logrus.Fields{
				"date":     candidateDate.Format(models.DateLayout),
				"days_ago": daysAgo,
			}).WithError(err).Warn("Skipping candidate")
			continue
		}
		result.Examined++

		minutes := daylight.Minutes(candidate.DayLength, s.log.WithField("date", candidate.Key()))
		diff := abs(minutes - result.TodayMinutes)
		s.log.WithFields(logrus.Fields{
			"date":     candidate.Key(),
			"days_ago": daysAgo,
			"minutes":  minutes,
			"diff":     diff,
		}).Debug("Examined candidate")

		if !s.policy.accepts(diff) {
			continue
		}

		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
			match := candidate
			result.BestMatch = &match
			result.MatchMinutes = minutes
			result.DaysAgo = daysAgo
		}

		if s.policy.stopsAt(diff) {
			break
		}
	}

	metrics.CandidatesExamined.Set(float64(result.Examined))
	if result.BestMatch == nil {
		metrics.BestDiffMinutes.Set(-1)
		s.log.WithField("skipped", result.Skipped).Info("No similar day found")
		return result, nil
	}

	result.DiffMinutes = &bestDiff
	metrics.BestDiffMinutes.Set(float64(bestDiff))
	s.log.Infof("Found best match from %s with %d min difference", result.BestMatch.Key(), bestDiff)
	return result, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
