package provider

import "time"

type DateRange struct {
	From time.Time
	To   time.Time
}

// Lookback returns the calendar window of days ending on now's date.
func Lookback(now time.Time, days int) DateRange {
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return DateRange{From: to.AddDate(0, 0, -days), To: to}
}

// SplitDateRange cuts [from, to] into consecutive windows of at most
// chunkDays days, for upstreams that cap the span of one request.
func SplitDateRange(from, to time.Time, chunkDays int) []DateRange {
	if from.After(to) || chunkDays <= 0 {
		return nil
	}

	var chunks []DateRange
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, chunkDays) {
		end := cur.AddDate(0, 0, chunkDays-1)
		if end.After(to) {
			end = to
		}
		chunks = append(chunks, DateRange{From: cur, To: end})
	}
	return chunks
}
