package core

import (
	"fmt"
	"strings"
)

// Period names a time window over records.
type Period string

const (
	PeriodToday Period = "today"
	// PeriodWeek is a rolling lookback: date >= today - 7 days.
	PeriodWeek Period = "week"
	// PeriodMonth is a rolling lookback of one calendar month.
	PeriodMonth Period = "month"
	// PeriodThisMonth is the calendar month containing now. It backs goal
	// progress and is deliberately not rolling.
	PeriodThisMonth Period = "thisMonth"
	// PeriodYear is a rolling lookback of one calendar year.
	PeriodYear Period = "year"
	PeriodAll  Period = "all"
)

// Periods lists every supported period.
var Periods = []Period{PeriodToday, PeriodWeek, PeriodMonth, PeriodThisMonth, PeriodYear, PeriodAll}

func (p Period) Valid() bool {
	for _, v := range Periods {
		if p == v {
			return true
		}
	}
	return false
}

func (p Period) String() string {
	return string(p)
}

// ParsePeriod accepts a period name case-insensitively. An empty string
// means PeriodAll.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PeriodAll, nil
	}
	for _, v := range Periods {
		if strings.EqualFold(s, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}
