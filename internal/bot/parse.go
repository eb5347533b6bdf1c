package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

var ageRx = regexp.MustCompile(`^(\d+)\s*([a-z]+)$`)

var ageUnits = map[string]string{
	"m": "m", "min": "m", "mins": "m", "minute": "m", "minutes": "m",
	"h": "h", "hr": "h", "hrs": "h", "hour": "h", "hours": "h",
	"d": "d", "day": "d", "days": "d",
	"w": "w", "week": "w", "weeks": "w",
}

// ParseAge reads ages such as "15 minutes", "2h", "1 day" or "1d12h".
func ParseAge(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if m := ageRx.FindStringSubmatch(s); m != nil {
		unit, ok := ageUnits[m[2]]
		if !ok {
			return 0, fmt.Errorf("unknown age unit %q", m[2])
		}
		s = m[1] + unit
	} else {
		s = strings.ReplaceAll(s, " ", "")
	}
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid age %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("age must be positive")
	}
	return d, nil
}

// FormatAge prints d as "1d2h" or "none".
func FormatAge(d *time.Duration) string {
	if d == nil || *d == 0 {
		return "none"
	}
	return str2duration.String(d.Round(time.Minute))
}

// ParseAmount reads a positive number, accepting a decimal comma and a
// leading "$" or trailing "%".
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.ReplaceAll(s, " ", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if v <= 0 {
		return 0, fmt.Errorf("number must be positive")
	}
	return v, nil
}
