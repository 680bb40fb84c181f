package common

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// The storefront platform returns loosely typed JSON: numeric fields may
// arrive as strings, optional fields may be null or absent entirely. The
// Loose* wrappers decode such fields tolerantly and record whether a usable
// value was present, so default substitution happens in one place instead of
// ad-hoc coalescing at every call site.

// LooseString decodes a JSON string, number, or null.
type LooseString struct {
	Value string
	Valid bool
}

// UnmarshalJSON implements tolerant decoding.
func (s *LooseString) UnmarshalJSON(data []byte) error {
	*s = LooseString{}
	if isNull(data) {
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if trimmed := strings.TrimSpace(str); trimmed != "" {
			s.Value = trimmed
			s.Valid = true
		}
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		s.Value = num.String()
		s.Valid = true
	}
	return nil
}

// Or returns the decoded value, falling back to def when absent.
func (s LooseString) Or(def string) string {
	if s.Valid {
		return s.Value
	}
	return def
}

// LooseInt64 decodes a JSON number, numeric string, or null.
type LooseInt64 struct {
	Value int64
	Valid bool
}

// UnmarshalJSON implements tolerant decoding.
func (i *LooseInt64) UnmarshalJSON(data []byte) error {
	*i = LooseInt64{}
	if isNull(data) {
		return nil
	}
	raw := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(data)), `"`))
	if raw == "" {
		return nil
	}
	if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
		i.Value = parsed
		i.Valid = true
		return nil
	}
	if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
		i.Value = int64(parsed)
		i.Valid = true
	}
	return nil
}

// Or returns the decoded value, falling back to def when absent.
func (i LooseInt64) Or(def int64) int64 {
	if i.Valid {
		return i.Value
	}
	return def
}

// LooseFloat decodes a JSON number, numeric string (optionally suffixed with
// a percent sign, as the coupon service formats discounts), or null.
type LooseFloat struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements tolerant decoding.
func (f *LooseFloat) UnmarshalJSON(data []byte) error {
	*f = LooseFloat{}
	if isNull(data) {
		return nil
	}
	raw := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(data)), `"`))
	raw = strings.TrimSuffix(raw, "%")
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	f.Value = parsed
	f.Valid = true
	return nil
}

// LooseTime decodes an RFC 3339 string or a unix timestamp in seconds or
// milliseconds.
type LooseTime struct {
	Value time.Time
	Valid bool
}

// UnmarshalJSON implements tolerant decoding.
func (t *LooseTime) UnmarshalJSON(data []byte) error {
	*t = LooseTime{}
	if isNull(data) {
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(str)); err == nil {
			t.Value = parsed
			t.Valid = true
		}
		return nil
	}
	var unix int64
	if err := json.Unmarshal(data, &unix); err == nil && unix > 0 {
		// Millisecond timestamps are unambiguous above this bound.
		if unix > 1e12 {
			t.Value = time.UnixMilli(unix)
		} else {
			t.Value = time.Unix(unix, 0)
		}
		t.Valid = true
	}
	return nil
}

func isNull(data []byte) bool {
	return len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
