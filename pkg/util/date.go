package util

import (
    "strconv"
    "time"
)

// ParseTime tries RFC3339, RFC3339Nano, unix seconds and unix milliseconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        // exchange timestamps are 13 digits
        if ts >= 1e12 {
            return time.UnixMilli(ts).UTC(), true
        }
        return time.Unix(ts, 0).UTC(), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// DayKey is the UTC calendar date used for daily counters.
func DayKey(t time.Time) string {
    return t.UTC().Format("2006-01-02")
}

// TimeframeDuration maps an exchange bar label to its length.
func TimeframeDuration(tf string) time.Duration {
    switch tf {
    case "1s":
        return time.Second
    case "1m":
        return time.Minute
    case "5m":
        return 5 * time.Minute
    case "15m":
        return 15 * time.Minute
    case "1H", "1h":
        return time.Hour
    default:
        return time.Minute
    }
}

// AlignFromTo rounds the time range to boundaries for the timeframe.
func AlignFromTo(from, to time.Time, tf string) (time.Time, time.Time) {
    d := TimeframeDuration(tf)
    return from.Truncate(d), to.Truncate(d)
}
