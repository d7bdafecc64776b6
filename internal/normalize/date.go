package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const monthPattern = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

var (
	reportDateRe    = regexp.MustCompile(`(?i)\b(` + monthPattern + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	titleMonthDayRe = regexp.MustCompile(`(?i)\b(` + monthPattern + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	monthDayRe      = regexp.MustCompile(`(?i)^(` + monthPattern + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	slashDateRe     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	dashPlaceholder = regexp.MustCompile(`^(?:-+|–|—|n/?a|tbd)$`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func monthFromName(name string) (time.Month, bool) {
	if len(name) < 3 {
		return 0, false
	}
	m, ok := monthsByPrefix[strings.ToLower(name[:3])]
	return m, ok
}

// dateOf builds a UTC date, rejecting days that overflow the month.
func dateOf(year int, month time.Month, day int) (time.Time, bool) {
	if day < 1 || day > 31 || month < time.January || month > time.December {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// FindReportDate finds the first "Month D, YYYY" date in text and returns
// the date and the matched text.
func FindReportDate(text string) (time.Time, string, bool) {
	m := reportDateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, "", false
	}
	month, ok := monthFromName(m[1])
	if !ok {
		return time.Time{}, "", false
	}
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	t, ok := dateOf(year, month, day)
	if !ok {
		return time.Time{}, "", false
	}
	return t, m[0], true
}

// FindTitleDate finds a report title date. A "Month D, YYYY" date is
// preferred; otherwise the first "Month D" in text is resolved with year.
func FindTitleDate(text string, year int) (time.Time, string, bool) {
	if t, match, ok := FindReportDate(text); ok {
		return t, match, true
	}
	m := titleMonthDayRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, "", false
	}
	month, ok := monthFromName(m[1])
	if !ok {
		return time.Time{}, "", false
	}
	day, _ := strconv.Atoi(m[2])
	t, ok := dateOf(year, month, day)
	if !ok {
		return time.Time{}, "", false
	}
	return t, m[0], true
}

// LeadingDate extracts a month-name-plus-day or m/d date at the start of
// text. referenceYear supplies the year when the token has none. It returns
// the date, the matched token, and the text after the token.
func LeadingDate(text string, referenceYear int) (time.Time, string, string, bool) {
	text = strings.TrimSpace(text)

	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		month, ok := monthFromName(m[1])
		if !ok {
			return time.Time{}, "", text, false
		}
		day, _ := strconv.Atoi(m[2])
		t, ok := dateOf(referenceYear, month, day)
		if !ok {
			return time.Time{}, "", text, false
		}
		return t, m[0], strings.TrimSpace(text[len(m[0]):]), true
	}

	if m := slashDateRe.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year := referenceYear
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		t, ok := dateOf(year, time.Month(month), day)
		if !ok {
			return time.Time{}, "", text, false
		}
		return t, m[0], strings.TrimSpace(text[len(m[0]):]), true
	}

	return time.Time{}, "", text, false
}

// HasDatePrefix reports whether text starts with a recognizable date token.
func HasDatePrefix(text string) bool {
	text = strings.TrimSpace(text)
	return monthDayRe.MatchString(text) || slashDateRe.MatchString(text)
}

// IsDashPlaceholder reports whether text is an empty-cell marker such as
// "-", "—", "N/A", or "TBD".
func IsDashPlaceholder(text string) bool {
	return dashPlaceholder.MatchString(strings.ToLower(strings.TrimSpace(text)))
}
