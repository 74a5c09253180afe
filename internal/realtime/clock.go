package realtime

import (
	"fmt"
	"time"
)

// Clock supplies the current time. Injected so tests can pin it.
type Clock func() time.Time

// FormatTimeDate renders a spoken-friendly current time and date fragment,
// e.g. "It is 3:04 PM on Monday, January 2, 2006."
func FormatTimeDate(now time.Time) string {
	return fmt.Sprintf("It is %s on %s.",
		now.Format("3:04 PM"),
		now.Format("Monday, January 2, 2006"),
	)
}
