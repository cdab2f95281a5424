package collect

import (
	"time"

	"github.com/araddon/dateparse"
)

// parseDate handles the date formats seen across search providers
// (RFC3339, RFC1123, bare dates and everything in between).
func parseDate(raw string) (time.Time, error) {
	return dateparse.ParseAny(raw)
}
