package tasks

import (
	"time"

	"github.com/desertthunder/podkeep/internal/services"
)

// releaseSortKey converts a release date with its precision to a comparable
// timestamp. Year precision resolves to January 1st, month precision to the
// 1st of the month. Unparseable dates sort after everything else so they are
// never picked as the oldest episode.
func releaseSortKey(date, precision string) time.Time {
	var layout string
	switch precision {
	case "year":
		layout = "2006"
	case "month":
		layout = "2006-01"
	default:
		layout = "2006-01-02"
	}

	parsed, err := time.Parse(layout, date)
	if err != nil {
		// Malformed dates occasionally show up in episode metadata.
		return time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}

	return parsed
}

// validForSaving reports whether an episode is a candidate for the library:
// it must carry identity and release metadata, must not already be saved,
// must not be finished, and must not be behind a paywall.
func validForSaving(ep services.Episode, saved map[string]bool) bool {
	if ep.ID == "" || ep.URI == "" || ep.ReleaseDate == "" {
		return false
	}
	if saved[ep.ID] {
		return false
	}
	if ep.FullyPlayed {
		return false
	}
	if ep.Paywalled {
		return false
	}
	return true
}

// oldestUnplayed selects the earliest-released valid episode from the list.
// Returns false when no episode qualifies.
func oldestUnplayed(episodes []services.Episode, saved map[string]bool) (services.Episode, bool) {
	var oldest services.Episode
	var oldestKey time.Time
	found := false

	for _, ep := range episodes {
		if !validForSaving(ep, saved) {
			continue
		}

		key := releaseSortKey(ep.ReleaseDate, ep.ReleaseDatePrecision)
		if !found || key.Before(oldestKey) {
			oldest = ep
			oldestKey = key
			found = true
		}
	}

	return oldest, found
}

// batchIDs splits episode IDs into chunks no larger than size.
func batchIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = 50
	}

	var batches [][]string
	for len(ids) > 0 {
		n := size
		if len(ids) < n {
			n = len(ids)
		}
		batches = append(batches, ids[:n])
		ids = ids[n:]
	}

	return batches
}
