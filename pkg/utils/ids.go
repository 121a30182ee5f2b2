package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRequestID generates a request identifier with a time-derived prefix
// and a random suffix, e.g. REQ-20250901-143022-9f3a. The suffix guards
// against collisions when two requests land in the same second.
func NewRequestID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	return fmt.Sprintf("REQ-%s-%s", t.Format("20060102-150405"), suffix)
}
