package validation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrParse marks a timestamp that matched none of the known representations
var ErrParse = errors.New("unparseable timestamp")

// DateLayout renders a civil date
const DateLayout = "2006-01-02"

// Window is one civil day in the reporting timezone with its endpoints
// converted to UTC for querying. Start <= End always holds.
type Window struct {
	Date  time.Time // midnight of the civil date, reporting timezone
	Start time.Time // UTC
	End   time.Time // UTC
}

// DayBounds returns the civil-day window of t in loc: 00:00:00.000 through
// 23:59:59.999999 of the same calendar date.
func DayBounds(t time.Time, loc *time.Location) Window {
	lt := t.In(loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	end := time.Date(lt.Year(), lt.Month(), lt.Day(), 23, 59, 59, 999999000, loc)

	return Window{
		Date:  start,
		Start: start.UTC(),
		End:   end.UTC(),
	}
}

// RoundDownToHour truncates t to the top of its hour in loc. Idempotent.
func RoundDownToHour(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), 0, 0, 0, loc)
}

// CivilDate renders the calendar date of t as observed in loc
func CivilDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// timestampLayouts are tried in order; first successful parse wins.
// Layouts without a zone parse as UTC, which is the uniform assumption for
// naive stored timestamps.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999Z",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// NormalizeTimestamp converts a stored create_time value into a UTC instant.
// Accepted representations: native datetimes, numeric epoch seconds, and
// strings in the known layouts. Anything else fails with ErrParse.
func NormalizeTimestamp(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("%w: nil timestamp", ErrParse)
		}
		return v.UTC(), nil
	case primitive.DateTime:
		return v.Time().UTC(), nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case int32:
		return time.Unix(int64(v), 0).UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case float64:
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q matches no known layout", ErrParse, v)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrParse, value)
	}
}
