package weather

import (
	"sort"
	"time"
)

// MaxForecastDays is the number of days the daily summary covers.
const MaxForecastDays = 5

const representativeHour = 12

// SummarizeDays groups forecast entries by UTC date and collapses each day
// into its minimum and maximum temperatures. The description and icon come
// from the entry at 12:00, or the day's first entry when there is none.
// days <= 0 or above MaxForecastDays is clamped to MaxForecastDays.
func SummarizeDays(forecast Forecast, days int) []DailySummary {
	if days <= 0 || days > MaxForecastDays {
		days = MaxForecastDays
	}

	type dayKey string

	buckets := make(map[dayKey][]ForecastEntry)
	for _, e := range forecast {
		ts := e.Timestamp.UTC()
		k := dayKey(ts.Format(time.DateOnly))
		buckets[k] = append(buckets[k], e)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	summaries := make([]DailySummary, 0, days)
	for _, k := range keys {
		if len(summaries) >= days {
			break
		}
		entries := buckets[dayKey(k)]
		if len(entries) == 0 {
			continue
		}

		rep := entries[0]
		minTemp, maxTemp := entries[0].MinTemp, entries[0].MaxTemp
		for _, e := range entries {
			if e.MinTemp < minTemp {
				minTemp = e.MinTemp
			}
			if e.MaxTemp > maxTemp {
				maxTemp = e.MaxTemp
			}
			if e.Timestamp.UTC().Hour() == representativeHour && e.Timestamp.Minute() == 0 {
				rep = e
			}
		}

		summaries = append(summaries, DailySummary{
			Date:        k,
			MinTemp:     minTemp,
			MaxTemp:     maxTemp,
			Description: rep.Description,
			IconID:      rep.IconID,
			Condition:   conditionFromIcon(rep.IconID),
		})
	}
	return summaries
}
