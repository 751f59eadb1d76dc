package dto

import (
	"fmt"
	"strings"
	"time"
)

// apiTimeLayout is the zone-less timestamp format the TaskFlow API
// uses for task and comment timestamps.
const apiTimeLayout = "2006-01-02T15:04:05"

// APITime wraps time.Time to handle the API's zone-less timestamps.
// It also accepts RFC 3339 on the way in, since some deployments emit
// full timestamps.
type APITime struct {
	time.Time
}

func (t APITime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(apiTimeLayout) + `"`), nil
}

func (t *APITime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{apiTimeLayout, time.RFC3339, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// NewAPITime wraps a time.Time.
func NewAPITime(t time.Time) *APITime {
	return &APITime{Time: t}
}
