package weather

import (
	"sort"
	"time"
)

// ForecastHorizon is the maximum number of forecast points returned.
const ForecastHorizon = 8

// forecastRecords orders provider forecast points by timestamp and keeps at
// most horizon of them. Missing points are never synthesized.
func forecastRecords(city string, points []Reading, horizon int, now time.Time) []Record {
	sorted := make([]Reading, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	if horizon > 0 && len(sorted) > horizon {
		sorted = sorted[:horizon]
	}

	records := make([]Record, 0, len(sorted))
	for _, p := range sorted {
		records = append(records, NewRecord(city, p, now))
	}
	return records
}

// bestArchivePoint picks, among the points falling inside [start, end), the
// one closest to midday. Ties keep the earlier point.
func bestArchivePoint(points []Reading, start, end time.Time) (Reading, bool) {
	target := start.Add(12 * time.Hour)

	var (
		best     Reading
		bestDist time.Duration
		found    bool
	)
	for _, p := range points {
		ts := p.Timestamp.UTC()
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		dist := ts.Sub(target)
		if dist < 0 {
			dist = -dist
		}
		if !found || dist < bestDist || (dist == bestDist && ts.Before(best.Timestamp)) {
			best, bestDist, found = p, dist, true
		}
	}
	return best, found
}
