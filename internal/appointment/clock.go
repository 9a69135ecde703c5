package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ClockTime is a wall-clock time of day in minutes since midnight.
type ClockTime int

const endOfDay ClockTime = 24 * 60

// ParseClock accepts "HH:MM" and "HH:MM:SS". Seconds are truncated.
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidInput, s)
	}

	var vals [3]int
	limits := [3]int{24, 60, 60}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || len(p) != 2 || n < 0 || n >= limits[i] {
			return 0, fmt.Errorf("%w: time %q", ErrInvalidInput, s)
		}
		vals[i] = n
	}

	return ClockTime(vals[0]*60 + vals[1]), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Interval is a half-open [Start, End) window on one day.
type Interval struct {
	Start ClockTime
	End   ClockTime
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}
