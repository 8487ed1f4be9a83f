package models

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidRange is returned when a range has start > end
var ErrInvalidRange = errors.New("invalid timestamp range")

// Timestamp is a point in time expressed in nanoseconds
type Timestamp int64

// TimestampRange is the closed interval [Start, End]
type TimestampRange struct {
	Start Timestamp
	End   Timestamp
}

// NewTimestampRange builds a range, start must not exceed end
func NewTimestampRange(start, end int64) (TimestampRange, error) {
	if start > end {
		return TimestampRange{}, errors.Wrapf(ErrInvalidRange, "start %d is after end %d", start, end)
	}
	return TimestampRange{Start: Timestamp(start), End: Timestamp(end)}, nil
}

// Intersects reports whether the two closed intervals overlap
func (r TimestampRange) Intersects(o TimestampRange) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// Contains reports whether ts lies in the range
func (r TimestampRange) Contains(ts Timestamp) bool {
	return r.Start <= ts && ts <= r.End
}

// Union returns the smallest range covering both
func (r TimestampRange) Union(o TimestampRange) TimestampRange {
	out := r
	if o.Start < out.Start {
		out.Start = o.Start
	}
	if o.End > out.End {
		out.End = o.End
	}
	return out
}

// String implements fmt.Stringer
func (r TimestampRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.Start, r.End)
}

// MarshalJSON encodes the range as a two element array
func (r TimestampRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{int64(r.Start), int64(r.End)})
}

// UnmarshalJSON decodes a two element array and validates ordering
func (r *TimestampRange) UnmarshalJSON(data []byte) error {
	var pair [2]int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return errors.Wrap(ErrInvalidRange, err.Error())
	}
	parsed, err := NewTimestampRange(pair[0], pair[1])
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
