package bot

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/roach88/studybot/internal/roster"
)

// ErrUnparseable is returned by ParseDeadline for input it does not
// recognise as a date.
var ErrUnparseable = errors.New("unrecognised date")

// Each parser covers one kind of expression so the result can be post
// processed by kind.
var (
	relativeDates = newParser(en.CasualDate(rules.Override), en.Deadline(rules.Override))
	weekdayDates  = newParser(en.Weekday(rules.Override))
	calendarDates = newParser(en.ExactMonthDate(rules.Override), common.SlashDMY(rules.Override))
)

var (
	reTrailingYear = regexp.MustCompile(`^(.+) (\d{4})$`)
	rePunctuate    = regexp.MustCompile(`[.,]`)
)

func newParser(rs ...rules.Rule) *when.Parser {
	w := when.New(nil)
	w.Add(rs...)
	return w
}

// ParseDeadline reads a calendar date out of input relative to now and
// returns midnight of that date in loc. It accepts:
//
//	today, tomorrow, in 3 days, in 2 weeks
//	friday, next wed (next occurrence after today)
//	25 July, July 25, 25 Jul 2027
//	25/07, 25/07/2027
//	2027-07-25
//
// A day and month without a year that has already passed this year rolls
// over to next year. Past dates with an explicit year are returned as is;
// the caller decides whether they are acceptable.
func ParseDeadline(input string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := roster.DateOf(now, loc)
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.Join(strings.Fields(rePunctuate.ReplaceAllString(s, " ")), " ")
	if s == "" {
		return time.Time{}, ErrUnparseable
	}

	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}

	if t, ok := match(relativeDates, s, today); ok {
		return roster.DateOf(t, loc), nil
	}

	if t, ok := match(weekdayDates, s, today); ok {
		d := roster.DateOf(t, loc)
		for !d.After(today) {
			d = d.AddDate(0, 0, 7)
		}
		for d.After(today.AddDate(0, 0, 7)) {
			d = d.AddDate(0, 0, -7)
		}
		return d, nil
	}

	text, year := s, 0
	if m := reTrailingYear.FindStringSubmatch(s); m != nil {
		text = m[1]
		year, _ = strconv.Atoi(m[2])
	}
	t, ok := match(calendarDates, text, today)
	if !ok {
		return time.Time{}, ErrUnparseable
	}
	d := roster.DateOf(t, loc)
	switch {
	case year != 0:
		return makeDate(year, d.Month(), d.Day(), loc)
	case strings.Count(text, "/") == 2:
		return d, nil
	}
	for d.Before(today) {
		d = d.AddDate(1, 0, 0)
	}
	return d, nil
}

// match parses s with w and succeeds only if the whole of s is the date.
func match(w *when.Parser, s string, base time.Time) (time.Time, bool) {
	r, err := w.Parse(s, base)
	if err != nil || r == nil || strings.TrimSpace(r.Text) != s {
		return time.Time{}, false
	}
	return r.Time, true
}

// makeDate rejects dates time.Date would normalise, such as 29/02/2027.
func makeDate(y int, mo time.Month, d int, loc *time.Location) (time.Time, error) {
	t := time.Date(y, mo, d, 0, 0, 0, 0, loc)
	if t.Year() != y || t.Month() != mo || t.Day() != d {
		return time.Time{}, ErrUnparseable
	}
	return t, nil
}
