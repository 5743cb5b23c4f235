package shared

import "time"

// ParseDate accepts RFC3339 timestamps or plain YYYY-MM-DD dates. An empty
// string parses to the zero time without error.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", value)
}

// PeriodLabel renders a pay period as YYYY-MM for file names and messages.
func PeriodLabel(year, month int) string {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
