package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SlotGranularity is the fixed length of a bookable slot.
const SlotGranularity = 30 * time.Minute

const dateLayout = "2006-01-02"

// Date is a calendar date without a zone. It is placed on the timeline with
// the clinic's location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Midnight is the start of d in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At places a time of day on d in loc.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), 0, 0, loc)
}

func (d Date) Weekday() Weekday {
	return weekdayFromTime(d.Midnight(time.UTC).Weekday())
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Midnight(time.UTC).AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// Time returns d as midnight UTC, the form used for DATE columns.
func (d Date) Time() time.Time { return d.Midnight(time.UTC) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time with minute precision, stored as minutes
// since midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts HH:MM or HH:MM:SS with zero seconds.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 || len(parts[0]) != 2 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 && parts[2] != "00" {
		return 0, fmt.Errorf("time %q must not carry seconds", s)
	}
	return NewTimeOfDay(h, m), nil
}

// TimeOfDayOf truncates t to the minute.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) Valid() bool { return t >= 0 && t < minutesPerDay }

// Add returns t shifted by d. The result may pass midnight; callers compare
// it against window ends, which never do.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Display is the 12-hour form shown to patients, e.g. "09:30 AM".
func (t TimeOfDay) Display() string {
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	suffix := "AM"
	if t.Hour() >= 12 {
		suffix = "PM"
	}
	return fmt.Sprintf("%02d:%02d %s", h, t.Minute(), suffix)
}

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Weekday is a lower-case English day name, monday first.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func ParseWeekday(s string) (Weekday, error) {
	w := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if w.Index() < 0 {
		return "", fmt.Errorf("invalid day_of_week %q", s)
	}
	return w, nil
}

// Index is 0 for monday through 6 for sunday, or -1 when w is unknown.
func (w Weekday) Index() int {
	for i, d := range weekdays {
		if d == w {
			return i
		}
	}
	return -1
}

func weekdayFromTime(d time.Weekday) Weekday {
	// time.Weekday counts from sunday
	return weekdays[(int(d)+6)%7]
}
