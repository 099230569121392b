// Package ids builds sortable, collision-resistant names for stored objects.
package ids

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns prefix_<unixnano>_<8 hex chars>. The timestamp keeps names
// ordered by creation; the random suffix separates calls in the same
// nanosecond or on different hosts.
func NewID(prefix string) string {
	return NewIDAt(prefix, time.Now())
}

// NewIDAt is NewID with an explicit clock reading.
func NewIDAt(prefix string, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", prefix, at.UnixNano(), suffix)
}
