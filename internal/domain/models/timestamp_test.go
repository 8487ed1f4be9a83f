package models

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampRange_Validation(t *testing.T) {
	_, err := NewTimestampRange(10, 5)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	r, err := NewTimestampRange(5, 5)
	require.NoError(t, err)
	assert.True(t, r.Contains(5))
}

func TestTimestampRange_Intersects(t *testing.T) {
	r := TimestampRange{Start: 10, End: 20}
	tests := []struct {
		name   string
		other  TimestampRange
		expect bool
	}{
		{"inside", TimestampRange{12, 15}, true},
		{"touching start", TimestampRange{0, 10}, true},
		{"touching end", TimestampRange{20, 30}, true},
		{"before", TimestampRange{0, 9}, false},
		{"after", TimestampRange{21, 30}, false},
		{"covering", TimestampRange{0, 100}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, r.Intersects(tt.other))
			assert.Equal(t, tt.expect, tt.other.Intersects(r))
		})
	}
}

func TestTimestampRange_JSON(t *testing.T) {
	data, err := json.Marshal(TimestampRange{Start: 1000, End: 1001})
	require.NoError(t, err)
	assert.Equal(t, "[1000,1001]", string(data))

	var r TimestampRange
	require.NoError(t, json.Unmarshal([]byte("[3,4]"), &r))
	assert.Equal(t, TimestampRange{Start: 3, End: 4}, r)

	err = json.Unmarshal([]byte("[4,3]"), &r)
	assert.True(t, errors.Is(err, ErrInvalidRange))

	err = json.Unmarshal([]byte(`"x"`), &r)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestTimestampRange_Union(t *testing.T) {
	a := TimestampRange{Start: 5, End: 10}
	assert.Equal(t, TimestampRange{Start: 1, End: 10}, a.Union(TimestampRange{Start: 1, End: 2}))
	assert.Equal(t, TimestampRange{Start: 5, End: 30}, a.Union(TimestampRange{Start: 7, End: 30}))
}
