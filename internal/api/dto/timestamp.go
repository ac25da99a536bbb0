package dto

import (
	"bytes"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// Timestamp renders as "YYYY-MM-DD HH:MM:SS" in local time.
type Timestamp time.Time

// NewTimestamp converts an optional time; nil stays nil.
func NewTimestamp(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	ts := Timestamp(*t)
	return &ts
}

// Time returns the underlying time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, len(domain.DateTimeLayout)+2)
	buf = append(buf, '"')
	buf = time.Time(t).In(time.Local).AppendFormat(buf, domain.DateTimeLayout)
	buf = append(buf, '"')
	return buf, nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	parsed, err := time.ParseInLocation(`"`+domain.DateTimeLayout+`"`, string(data), time.Local)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}
