// Package dates parses the loosely formatted timestamps found in article
// markup and feeds.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var ErrEmpty = errors.New("empty date string")

// sentinelZone is a non-UTC zone used to tell zoned strings from naive ones.
var sentinelZone = time.FixedZone("sentinel", 5*60*60+30*60)

// Parse reads s in any format dateparse understands. The returned time is in
// UTC. naive is true when s carried no zone or offset, in which case the wall
// clock was taken as UTC.
func Parse(s string) (t time.Time, naive bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, ErrEmpty
	}

	inUTC, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse date %q: %w", s, err)
	}

	inSentinel, err := dateparse.ParseIn(s, sentinelZone)
	if err != nil {
		return inUTC.UTC(), false, nil
	}

	return inUTC.UTC(), !inUTC.Equal(inSentinel), nil
}
