package maintenance

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Canonical frequency values. Generated schedules may carry free-form or
// numeric frequencies; NormalizeFrequency maps them onto this set where
// possible and falls back to the original text otherwise.
const (
	FrequencyDaily      = "daily"
	FrequencyWeekly     = "weekly"
	FrequencyMonthly    = "monthly"
	FrequencyQuarterly  = "quarterly"
	FrequencySemiAnnual = "semi-annual"
	FrequencyAnnual     = "annual"
	FrequencyBiAnnual   = "bi-annual"
)

var numericFrequencies = map[int]string{
	1:   FrequencyDaily,
	7:   FrequencyWeekly,
	30:  FrequencyMonthly,
	90:  FrequencyQuarterly,
	180: FrequencySemiAnnual,
	365: FrequencyAnnual,
}

var intervalPattern = regexp.MustCompile(`(?i)(\d+)\s*(day|week|month|year)s?`)

// NormalizeFrequency maps numeric day counts and common phrasings onto the
// canonical frequency set. Empty input defaults to daily; unrecognized text
// is returned unchanged.
func NormalizeFrequency(frequency string) string {
	freq := strings.TrimSpace(frequency)
	if freq == "" {
		return FrequencyDaily
	}
	if days, err := strconv.Atoi(freq); err == nil {
		if canonical, ok := numericFrequencies[days]; ok {
			return canonical
		}
		return FrequencyDaily
	}
	lower := strings.ToLower(freq)
	switch {
	case strings.Contains(lower, "daily"), strings.Contains(lower, "every day"):
		return FrequencyDaily
	case strings.Contains(lower, "weekly"), strings.Contains(lower, "every week"):
		return FrequencyWeekly
	case strings.Contains(lower, "bi-annual"), strings.Contains(lower, "every 2 years"):
		return FrequencyBiAnnual
	case strings.Contains(lower, "semi-annual"), strings.Contains(lower, "every 6 months"):
		return FrequencySemiAnnual
	case strings.Contains(lower, "quarterly"), strings.Contains(lower, "every 3 months"):
		return FrequencyQuarterly
	case strings.Contains(lower, "monthly"), strings.Contains(lower, "every month"):
		return FrequencyMonthly
	case strings.Contains(lower, "annual"), strings.Contains(lower, "yearly"), strings.Contains(lower, "every year"):
		return FrequencyAnnual
	}
	return freq
}

// NextDate computes the next maintenance date from the last one and a
// frequency. Unrecognized frequencies default to daily.
func NextDate(last time.Time, frequency string) time.Time {
	lower := strings.ToLower(strings.TrimSpace(frequency))
	switch lower {
	case FrequencyDaily, "":
		return last.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return last.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return last.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		return last.AddDate(0, 3, 0)
	case FrequencySemiAnnual:
		return last.AddDate(0, 6, 0)
	case FrequencyAnnual:
		return last.AddDate(1, 0, 0)
	case FrequencyBiAnnual:
		return last.AddDate(2, 0, 0)
	}
	if match := intervalPattern.FindStringSubmatch(lower); match != nil {
		n, _ := strconv.Atoi(match[1])
		switch match[2] {
		case "day":
			return last.AddDate(0, 0, n)
		case "week":
			return last.AddDate(0, 0, 7*n)
		case "month":
			return last.AddDate(0, n, 0)
		case "year":
			return last.AddDate(n, 0, 0)
		}
	}
	return last.AddDate(0, 0, 1)
}
