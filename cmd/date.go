package cmd

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	singleYear = regexp.MustCompile(`^(\d{4})$`)
	yearRange  = regexp.MustCompile(`^(\d{4})-(\d{4})$`)
)

// parseYearRange accepts "2019" or "2016-2022" and returns the inclusive
// range.
func parseYearRange(ys string) (from int, to int, err error) {
	if m := singleYear.FindStringSubmatch(ys); m != nil {
		from, err = parseYear(m[1])
		to = from
		return
	}

	m := yearRange.FindStringSubmatch(ys)
	if m == nil {
		err = fmt.Errorf("Invalid format: %q", ys)
		return
	}
	if from, err = parseYear(m[1]); err != nil {
		return
	}
	if to, err = parseYear(m[2]); err != nil {
		return
	}
	if from > to {
		err = fmt.Errorf("Invalid range: %q ends before it starts", ys)
	}
	return
}

// yearRangeFromFlags resolves --years, or --from and --to, defaulting to the
// last five full years.
func yearRangeFromFlags(years string, from, to int, now time.Time) (int, int, error) {
	if years != "" {
		if from != 0 || to != 0 {
			return 0, 0, fmt.Errorf("--years cannot be combined with --from or --to")
		}
		return parseYearRange(years)
	}
	if to == 0 {
		to = now.Year() - 1
	}
	if from == 0 {
		from = to - 4
	}
	if from > to {
		return 0, 0, fmt.Errorf("Invalid range: %d-%d", from, to)
	}
	return from, to, nil
}

func parseYear(s string) (int, error) {
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("Parsing year: %w", err)
	}
	if year < 2000 {
		return 0, fmt.Errorf("Invalid year %d: favorites playlists start in 2016", year)
	}
	return year, nil
}
