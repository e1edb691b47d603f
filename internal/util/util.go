package util

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration formats duration into human readable format (e.g., "1h30m", "5m10s", "45s").
func FormatDuration(duration time.Duration) string {
	duration = duration.Round(time.Second)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	}

	if duration < time.Hour {
		m := int(duration.Minutes())
		s := int(duration.Seconds()) % 60

		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}

		return fmt.Sprintf("%dm%ds", m, s)
	}

	h := int(duration.Hours())
	m := int(duration.Minutes()) % 60

	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}

	return fmt.Sprintf("%dh%dm", h, m)
}

// MaskEmail keeps the first character of the local part and the domain,
// e.g. "alice@example.com" -> "a****@example.com". Used in logs.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}

	local := email[:at]

	return local[:1] + strings.Repeat("*", len(local)-1) + email[at:]
}
