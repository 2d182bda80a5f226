// Package schedule parses the task schedule grammar:
//
//	every <N>m   every N minutes
//	every <N>h   every N hours
//	every day    every 24 hours
//	HH:MM        once a day at local wall-clock time
//
// Keywords are case-insensitive and surrounding whitespace is ignored.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wasilibs/go-re2"
)

// ErrInvalidSchedule is returned by Validate for strings Parse rejects.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Rule computes the next fire time after a given instant.
type Rule = cron.Schedule

var (
	intervalPattern = re2.MustCompile(`(?i)^every\s+(\d+)\s*([mh])$`)
	dayPattern      = re2.MustCompile(`(?i)^every\s+day$`)
	dailyPattern    = re2.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// Interval fires at a fixed distance from the previous fire.
type Interval struct {
	Every time.Duration
}

// Next returns t + Every.
func (i Interval) Next(t time.Time) time.Time {
	return t.Add(i.Every)
}

// Parse converts s into a Rule. It reports false for strings outside the
// grammar.
func Parse(s string) (Rule, bool) {
	rule, err := parse(s)
	if err != nil {
		return nil, false
	}
	return rule, true
}

// Validate returns an error wrapping ErrInvalidSchedule when s cannot be
// parsed.
func Validate(s string) error {
	_, err := parse(s)
	return err
}

func parse(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty schedule", ErrInvalidSchedule)
	}

	if dayPattern.MatchString(s) {
		return Interval{Every: 24 * time.Hour}, nil
	}

	if m := intervalPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %q: interval must be a positive integer", ErrInvalidSchedule, s)
		}
		unit := time.Minute
		if strings.EqualFold(m[2], "h") {
			unit = time.Hour
		}
		return Interval{Every: time.Duration(n) * unit}, nil
	}

	if m := dailyPattern.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return nil, fmt.Errorf("%w: %q: time of day out of range", ErrInvalidSchedule, s)
		}
		rule, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, s, err)
		}
		return rule, nil
	}

	return nil, fmt.Errorf("%w: %q (expected: every <N>m, every <N>h, every day, HH:MM)", ErrInvalidSchedule, s)
}
