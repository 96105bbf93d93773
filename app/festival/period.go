package festival

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar day without time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate rejects days that do not exist, such as 2024-02-30.
func NewDate(year int, month time.Month, day int) (Date, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, &ParseError{
			Input:  fmt.Sprintf("%04d-%02d-%02d", year, int(month), day),
			Reason: "not a calendar date",
		}
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses the ISO form "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ParseError{Input: s, Reason: "expected YYYY-MM-DD"}
	}
	return DateOf(t), nil
}

func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Period is a validated event interval, both ends inclusive.
type Period struct {
	Start Date
	End   Date
}

// ParsePeriod is the only way to obtain a Period from a display string
// of the form "2024.07.10 ~ 2024.07.20".
func ParsePeriod(s string) (Period, error) {
	sides := strings.Split(s, "~")
	if len(sides) != 2 {
		return Period{}, &ParseError{Input: s, Reason: "expected \"<start> ~ <end>\""}
	}

	start, err := parseDottedDate(sides[0])
	if err != nil {
		return Period{}, &ParseError{Input: s, Reason: "invalid start: " + err.Error()}
	}
	end, err := parseDottedDate(sides[1])
	if err != nil {
		return Period{}, &ParseError{Input: s, Reason: "invalid end: " + err.Error()}
	}

	return Period{Start: start, End: end}, nil
}

func parseDottedDate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("expected year.month.day, got %q", strings.TrimSpace(s))
	}

	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Date{}, fmt.Errorf("non-numeric component %q", part)
		}
		nums[i] = n
	}

	return NewDate(nums[0], time.Month(nums[1]), nums[2])
}

// Overlaps uses the interval intersection test start <= to && end >= from.
func (p Period) Overlaps(from, to Date) bool {
	return p.Start.Compare(to) <= 0 && p.End.Compare(from) >= 0
}

// Ended reports whether the event finished before today.
func (p Period) Ended(today Date) bool {
	return p.End.Before(today)
}

func (p Period) String() string {
	return formatDotted(p.Start) + " ~ " + formatDotted(p.End)
}

// FormatPeriod turns two raw "YYYYMMDD" values into the display form.
// Values that are not eight characters long are passed through unchanged.
func FormatPeriod(rawStart, rawEnd string) string {
	rawStart = strings.TrimSpace(rawStart)
	rawEnd = strings.TrimSpace(rawEnd)
	if rawStart == "" && rawEnd == "" {
		return PlaceholderPeriod
	}
	return formatRawDate(rawStart) + " ~ " + formatRawDate(rawEnd)
}

func formatRawDate(s string) string {
	if len(s) != 8 {
		return s
	}
	return s[0:4] + "." + s[4:6] + "." + s[6:8]
}

func formatDotted(d Date) string {
	return fmt.Sprintf("%04d.%02d.%02d", d.Year, int(d.Month), d.Day)
}
