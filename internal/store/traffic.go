package store

import (
	"sort"
	"time"
)

// normalizeTraffic zero-fills raw daily counts over the trailing window
// and returns them sorted by day ascending. Charts expect a fixed-length
// series, not sparse rows.
func normalizeTraffic(raw []*TrafficPoint, now time.Time) []*TrafficPoint {
	series := make(map[string]*TrafficPoint, TrafficWindowDays)
	for i := 0; i < TrafficWindowDays; i++ {
		day := dayStart(now.UTC().AddDate(0, 0, -i))
		series[day.Format("2006-01-02")] = &TrafficPoint{Timestamp: day}
	}

	for _, point := range raw {
		key := point.Timestamp.UTC().Format("2006-01-02")
		if existing, ok := series[key]; ok {
			existing.Count = point.Count
		}
	}

	result := make([]*TrafficPoint, 0, len(series))
	for _, point := range series {
		result = append(result, point)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
