package identity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// unmarshalPrincipal decodes the GoTrue user payload. The service reports
// timestamps as RFC 3339 strings but has historically emitted empty strings
// instead of null for unset fields, so decode defensively.
func unmarshalPrincipal(data []byte, principal *Principal) error {
	var raw struct {
		ID               string `json:"id"`
		Email            string `json:"email"`
		EmailConfirmedAt string `json:"email_confirmed_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal identity payload: %w", err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return fmt.Errorf("identity payload missing user id")
	}

	principal.ID = raw.ID
	principal.Email = raw.Email
	principal.EmailVerifiedAt = nil
	if ts := strings.TrimSpace(raw.EmailConfirmedAt); ts != "" {
		if parsed, ok := parseTimestamp(ts); ok {
			principal.EmailVerifiedAt = &parsed
		}
	}
	return nil
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
